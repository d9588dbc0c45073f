package planner

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/plan"
)

// openRequestEval is the last resort: ask anyone nearby for the whole remainder.
type openRequestEval struct{}

func (openRequestEval) Name() string                { return "open_request" }
func (openRequestEval) Enabled(c Capabilities) bool { return c.RequestAnyone }
func (openRequestEval) Floor() float64              { return plan.CostOpenRequest }

func (openRequestEval) Evaluate(_ context.Context, req Request) (*plan.Plan, error) {
	return plan.New(req.Item, req.Need).Add(plan.OpenRequest{Name: req.Item, N: req.Need}), nil
}
