package planner

import (
	"context"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/plan"
)

type cookEval struct{ p *Planner }

func (cookEval) Name() string                { return "cook" }
func (cookEval) Enabled(c Capabilities) bool { return c.Cook }
func (cookEval) Floor() float64              { return plan.CostCook }

func (e cookEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	recipes := e.p.rankRecipes(e.p.kb.CookRecipes(req.Item))
	var best *plan.Plan
	for _, r := range recipes {
		cand, err := e.try(ctx, req, r)
		if err != nil {
			return nil, err
		}
		if cand != nil && plan.Better(cand, best) {
			best = cand
		}
	}
	return best, nil
}

func (e cookEval) try(ctx context.Context, req Request, r knowledge.RecipeDef) (*plan.Plan, error) {
	y := r.Yield(req.Item)
	if y <= 0 {
		return nil, nil
	}
	times := ceilDiv(req.Need, y)
	sub := plan.New(req.Item, req.Need)

	src, found, ok, err := e.heatSource(ctx, req, sub, r)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.p.log.Debug("recipe rejected: no heat source", zap.String("recipe", r.RecipeID))
		return nil, nil
	}
	if ok, err := e.p.ingredients(ctx, req, sub, r, times); err != nil || !ok {
		return nil, err
	}

	step := plan.Cook{Name: req.Item, Recipe: r, Times: times, Want: req.Need, Source: src}
	if src.NeedsFuel {
		fp, fuel, err := e.fuel(ctx, req, sub, times)
		if err != nil {
			return nil, err
		}
		if fp == nil {
			e.p.log.Debug("recipe rejected: no fuel", zap.String("recipe", r.RecipeID))
			return nil, nil
		}
		sub.AddSub(fp)
		step.Fuel, step.FuelUnits = fuel.Item, fuel.Units(times)
	}
	if found {
		sub.Add(plan.Navigate{Target: src.Pos, Proximity: e.p.cfg.Proximity, Reason: src.Block})
	}
	return sub.Add(step), nil
}

// heatSource prefers a fuel-free source in range, then a fuelled one in range,
// then one placed earlier in the plan, then placing one (fuel-free first).
// found reports an existing block at ref.Pos.
func (e cookEval) heatSource(ctx context.Context, req Request, sub *plan.Plan, r knowledge.RecipeDef) (ref plan.HeatSourceRef, found, ok bool, err error) {
	allowed := map[string]bool{}
	for _, b := range r.HeatSources {
		allowed[b] = true
	}
	var usable []knowledge.HeatSource
	for _, hs := range e.p.kb.HeatSources() {
		if allowed[hs.Block] {
			usable = append(usable, hs)
		}
	}

	for _, hs := range usable {
		ps, err := e.p.env.World.FindBlocks(ctx, hs.Block, e.p.cfg.SurfaceRadius)
		if err != nil {
			return ref, false, false, err
		}
		if len(ps) > 0 {
			return plan.HeatSourceRef{Block: hs.Block, Pos: ps[0], NeedsFuel: hs.NeedsFuel}, true, true, nil
		}
	}
	pred := plan.PredictPlan(plan.Join(req.SoFar, sub))
	for _, hs := range usable {
		if pred.StationPlaced(hs.Block) {
			return plan.HeatSourceRef{Block: hs.Block, NeedsFuel: hs.NeedsFuel}, false, true, nil
		}
	}
	for _, hs := range usable {
		sp, err := e.p.search(ctx, hs.Item, 1, req.Caps, req.Context, plan.Join(req.SoFar, sub))
		if err != nil {
			return ref, false, false, err
		}
		if sp.Sufficient() {
			sub.AddSub(sp)
			return plan.HeatSourceRef{Block: hs.Block, NeedsFuel: hs.NeedsFuel, Place: true}, false, true, nil
		}
	}
	return ref, false, false, nil
}

// fuel plans enough of the best fuel for ops cooking operations.
func (e cookEval) fuel(ctx context.Context, req Request, sub *plan.Plan, ops int) (*plan.Plan, knowledge.Fuel, error) {
	var (
		best *plan.Plan
		pick knowledge.Fuel
	)
	for _, f := range e.p.kb.Fuels() {
		units := f.Units(ops)
		if units <= 0 {
			continue
		}
		fp, err := e.p.search(ctx, f.Item, units, req.Caps, req.Context, plan.Join(req.SoFar, sub))
		if err != nil {
			return nil, knowledge.Fuel{}, err
		}
		if !fp.Sufficient() {
			continue
		}
		if best == nil || plan.Better(fp, best) {
			best, pick = fp, f
		}
	}
	return best, pick, nil
}
