package planner

import (
	"context"
	"sort"

	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

type containerEval struct{ p *Planner }

func (containerEval) Name() string                { return "container" }
func (containerEval) Enabled(c Capabilities) bool { return c.UseContainers }
func (containerEval) Floor() float64              { return plan.CostContainer }

// Evaluate draws from the nearest known container in the agent's region that
// still has unclaimed stock.
func (e containerEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	if e.p.env.Containers == nil {
		return nil, nil
	}
	recs, err := e.p.env.Containers.Containers(ctx)
	if err != nil {
		return nil, err
	}
	self, err := e.p.self(ctx)
	if err != nil {
		return nil, err
	}

	cands := make([]world.ContainerRecord, 0, len(recs))
	for _, r := range recs {
		if r.Dimension != self.Dimension || r.Stock[req.Item] <= 0 {
			continue
		}
		if self.Pos.Dist(r.Pos) > float64(e.p.cfg.RegionRadius) {
			continue
		}
		cands = append(cands, r)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := self.Pos.Dist(cands[i].Pos), self.Pos.Dist(cands[j].Pos)
		if di != dj {
			return di < dj
		}
		return cands[i].ID < cands[j].ID
	})

	pred := req.Predicted()
	for _, r := range cands {
		avail := r.Stock[req.Item] + pred.ContainerDelta(r.Key(), req.Item)
		if avail <= 0 {
			continue
		}
		ref := plan.ContainerRef{ID: r.ID, Type: r.Type, Pos: r.Pos, Dimension: r.Dimension}
		return plan.New(req.Item, req.Need).Add(plan.FromContainer{Name: req.Item, N: min(avail, req.Need), Container: ref}), nil
	}
	return nil, nil
}
