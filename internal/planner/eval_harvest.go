package planner

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/plan"
)

type harvestEval struct{ p *Planner }

func (harvestEval) Name() string                { return "harvest" }
func (harvestEval) Enabled(c Capabilities) bool { return c.HarvestMobs }
func (harvestEval) Floor() float64              { return plan.CostHarvest }

// Evaluate plans the tool first, then picks the nearest eligible creature not
// already committed earlier in the plan.
func (e harvestEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	var best *plan.Plan
	for _, ms := range e.p.kb.MobSources(req.Item) {
		tp, err := e.p.search(ctx, ms.Tool, 1, req.Caps, req.Context, req.SoFar)
		if err != nil {
			return nil, err
		}
		if !tp.Sufficient() {
			continue
		}
		ents, err := e.p.env.World.FindEntities(ctx, ms.Mob, e.p.cfg.SearchRadius)
		if err != nil {
			return nil, err
		}
		pred := plan.PredictPlan(plan.Join(req.SoFar, tp))
		for _, en := range ents {
			if pred.MobCommitted(en.ID) || (ms.ExcludeTag != "" && en.HasTag(ms.ExcludeTag)) {
				continue
			}
			cand := plan.New(req.Item, req.Need).
				AddSub(tp).
				Add(plan.Navigate{Target: en.Pos, Proximity: e.p.cfg.Proximity, Reason: ms.Mob}).
				Add(plan.HarvestMob{
					Name: req.Item, N: ms.Yield, MobID: en.ID, MobType: en.Type, Pos: en.Pos,
					Tool: tp.Target, ToolConsumed: ms.Consumed,
				})
			if plan.Better(cand, best) {
				best = cand
			}
			break
		}
	}
	return best, nil
}
