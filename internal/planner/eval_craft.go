package planner

import (
	"context"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

type craftEval struct{ p *Planner }

func (craftEval) Name() string                { return "craft" }
func (craftEval) Enabled(c Capabilities) bool { return c.Craft }
func (craftEval) Floor() float64              { return plan.CostCraft }

func (e craftEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	recipes := e.p.rankRecipes(e.p.kb.CraftRecipes(req.Item))
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

func (e craftEval) try(ctx context.Context, req Request, r knowledge.RecipeDef) (*plan.Plan, error) {
	y := r.Yield(req.Item)
	if y <= 0 {
		return nil, nil
	}
	times := ceilDiv(req.Need, y)
	sub := plan.New(req.Item, req.Need)
	step := plan.Craft{Name: req.Item, Recipe: r, Times: times, Want: req.Need}

	if r.NeedsStation() {
		step.Station = r.Station
		s, ok, err := e.p.site(ctx, req, sub, r.Station)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.p.log.Debug("recipe rejected: no work surface", zap.String("recipe", r.RecipeID))
			return nil, nil
		}
		step.PlaceSurface = s.Place
		step.Surface, step.HasSurface = s.Pos, s.Found
	}

	ok, err := e.p.ingredients(ctx, req, sub, r, times)
	if err != nil || !ok {
		return nil, err
	}
	if step.HasSurface {
		sub.Add(plan.Navigate{Target: step.Surface, Proximity: e.p.cfg.Proximity, Reason: step.Station})
	}
	return sub.Add(step), nil
}

// ingredients plans every input of r for times runs into sub. It reports false
// as soon as one input falls short.
func (p *Planner) ingredients(ctx context.Context, req Request, sub *plan.Plan, r knowledge.RecipeDef, times int) (bool, error) {
	for _, in := range r.Inputs {
		n := in.Count * times
		ing, err := p.search(ctx, in.Item, n, req.Caps, req.Context, plan.Join(req.SoFar, sub))
		if err != nil {
			return false, err
		}
		if got := ing.Result(); got < n {
			p.log.Debug("recipe rejected: ingredient short",
				zap.String("recipe", r.RecipeID), zap.String("input", in.Item),
				zap.Int("got", got), zap.Int("need", n))
			return false, nil
		}
		sub.AddSub(ing)
	}
	return true, nil
}

// siteChoice is where a station-bound step will run. Found means an existing
// block at Pos; Place means the plan places one; neither means one placed
// earlier in the same plan will be used.
type siteChoice struct {
	Pos   world.Vec3
	Found bool
	Place bool
}

// site finds a block within the surface radius, reuses one placed earlier in
// the plan, or plans for the block's item as a sub-goal.
func (p *Planner) site(ctx context.Context, req Request, sub *plan.Plan, block string) (siteChoice, bool, error) {
	ps, err := p.env.World.FindBlocks(ctx, block, p.cfg.SurfaceRadius)
	if err != nil {
		return siteChoice{}, false, err
	}
	if len(ps) > 0 {
		return siteChoice{Pos: ps[0], Found: true}, true, nil
	}
	soFar := plan.Join(req.SoFar, sub)
	if plan.PredictPlan(soFar).StationPlaced(block) {
		return siteChoice{}, true, nil
	}
	sp, err := p.search(ctx, p.kb.PlacerFor(block), 1, req.Caps, req.Context, soFar)
	if err != nil {
		return siteChoice{}, false, err
	}
	if !sp.Sufficient() {
		return siteChoice{}, false, nil
	}
	sub.AddSub(sp)
	return siteChoice{Place: true}, true, nil
}

// rankRecipes orders recipes by the success weight of their ingredients.
func (p *Planner) rankRecipes(rs []knowledge.RecipeDef) []knowledge.RecipeDef {
	out := append([]knowledge.RecipeDef(nil), rs...)
	if p.mem == nil {
		return out
	}
	memory.Rank(out, func(r knowledge.RecipeDef) int {
		w := 0
		for _, in := range r.Inputs {
			best := 0
			for _, m := range p.kb.Members(in.Item) {
				best = max(best, p.mem.Weight(m))
			}
			w += best
		}
		return w
	})
	return out
}
