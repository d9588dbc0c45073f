package planner

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/plan"
)

type bundleEval struct{ p *Planner }

func (bundleEval) Name() string                { return "bundle" }
func (bundleEval) Enabled(c Capabilities) bool { return c.UseInventory }
func (bundleEval) Floor() float64              { return plan.CostBundle }

func (e bundleEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	bundles, err := e.p.env.World.Bundles(ctx)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, nil
	}
	pred := req.Predicted()
	for _, b := range bundles {
		avail := b.Contents[req.Item] + pred.BundleDelta(b.ID, req.Item)
		if avail <= 0 {
			continue
		}
		return plan.New(req.Item, req.Need).Add(plan.FromBundle{Name: req.Item, N: min(avail, req.Need), BundleID: b.ID}), nil
	}
	return nil, nil
}
