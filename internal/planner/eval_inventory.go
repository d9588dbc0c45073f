package planner

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/plan"
)

type inventoryEval struct{ p *Planner }

func (inventoryEval) Name() string                { return "inventory" }
func (inventoryEval) Enabled(c Capabilities) bool { return c.UseInventory }
func (inventoryEval) Floor() float64              { return plan.CostInventory }

// Evaluate claims held stock not already claimed earlier in the plan. Surplus
// produced earlier in the plan counts as held.
func (e inventoryEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	inv, err := e.p.env.World.Inventory(ctx)
	if err != nil {
		return nil, err
	}
	avail := inv[req.Item] + req.Predicted().InventoryDelta(req.Item)
	if avail <= 0 {
		return nil, nil
	}
	return plan.New(req.Item, req.Need).Add(plan.FromInventory{Name: req.Item, N: min(avail, req.Need)}), nil
}
