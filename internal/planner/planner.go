// Package planner is the recursive, backward-chaining acquisition search. It
// never performs world actions: evaluators read the world and describe steps,
// and the planner keeps the cheapest description per round until the need is
// covered or nothing can help.
package planner

import (
	"context"
	"math"

	"go.uber.org/zap"

	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

// Capabilities gates which strategy families the planner may use.
type Capabilities struct {
	UseInventory       bool `yaml:"use_inventory" json:"use_inventory"`
	UseContainers      bool `yaml:"use_containers" json:"use_containers"`
	Craft              bool `yaml:"craft" json:"craft"`
	Cook               bool `yaml:"cook" json:"cook"`
	Dig                bool `yaml:"dig" json:"dig"`
	RequestCooperative bool `yaml:"request_cooperative" json:"request_cooperative"`
	RequestAnyone      bool `yaml:"request_anyone" json:"request_anyone"`
	Trade              bool `yaml:"trade" json:"trade"`
	HarvestMobs        bool `yaml:"harvest_mobs" json:"harvest_mobs"`
}

func AllCapabilities() Capabilities {
	return Capabilities{
		UseInventory: true, UseContainers: true, Craft: true, Cook: true, Dig: true,
		RequestCooperative: true, RequestAnyone: true, Trade: true, HarvestMobs: true,
	}
}

// Context is the state of the active recursion chain.
type Context struct {
	Depth    int
	Ancestry []string
}

func (c Context) Has(item string) bool {
	for _, a := range c.Ancestry {
		if a == item {
			return true
		}
	}
	return false
}

// Enter returns the context for resolving item one level deeper.
func (c Context) Enter(item string) Context {
	anc := make([]string, len(c.Ancestry), len(c.Ancestry)+1)
	copy(anc, c.Ancestry)
	return Context{Depth: c.Depth + 1, Ancestry: append(anc, item)}
}

// Memory is the narrow view of success records the planner needs.
type Memory interface {
	Weight(item string) int
	Succeeded(ctx context.Context, item string)
}

type Config struct {
	MaxDepth      int     `yaml:"max_depth"`
	RegionRadius  int     `yaml:"region_radius"`
	SurfaceRadius int     `yaml:"surface_radius"`
	SearchRadius  int     `yaml:"search_radius"`
	DigRetries    int     `yaml:"dig_retries"`
	Proximity     float64 `yaml:"proximity"`
}

func DefaultConfig() Config {
	return Config{MaxDepth: 10, RegionRadius: 64, SurfaceRadius: 16, SearchRadius: 32, DigRetries: 5, Proximity: 2}
}

// Request is one evaluator call: cover Need units of Item given everything
// already committed in SoFar.
type Request struct {
	Item    string
	Need    int
	Caps    Capabilities
	Context Context
	SoFar   *plan.Plan
}

// Predicted folds the plan so far.
func (r Request) Predicted() plan.Predicted { return plan.PredictPlan(r.SoFar) }

// Evaluator is one acquisition strategy. A nil plan means it cannot help;
// errors are reserved for collaborator failures and abort planning.
type Evaluator interface {
	Name() string
	Enabled(Capabilities) bool
	// Floor is the lowest cost any plan from this evaluator can have.
	Floor() float64
	Evaluate(ctx context.Context, req Request) (*plan.Plan, error)
}

type Planner struct {
	kb  *knowledge.Base
	env world.Env
	mem Memory
	cfg Config
	log *zap.Logger

	exploits   []TerrainExploit
	evaluators []Evaluator
}

type Option func(*Planner)

// WithExploits replaces the terrain exploits (default: cobblestone generator).
func WithExploits(ex ...TerrainExploit) Option {
	return func(p *Planner) { p.exploits = ex }
}

// WithEvaluators replaces the evaluator list. Evaluators should be ordered by
// ascending Floor.
func WithEvaluators(evs ...Evaluator) Option {
	return func(p *Planner) { p.evaluators = evs }
}

func New(kb *knowledge.Base, env world.Env, mem Memory, cfg Config, log *zap.Logger, opts ...Option) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Planner{kb: kb, env: env, mem: mem, cfg: cfg, log: log}
	p.exploits = []TerrainExploit{CobblestoneGenerator{}}
	for _, o := range opts {
		o(p)
	}
	if p.evaluators == nil {
		p.evaluators = []Evaluator{
			inventoryEval{p},
			bundleEval{p},
			containerEval{p},
			terrainEval{p},
			craftEval{p},
			harvestEval{p},
			cookEval{p},
			cooperativeEval{p},
			tradeEval{p},
			openRequestEval{},
		}
	}
	return p
}

func (p *Planner) Knowledge() *knowledge.Base { return p.kb }

// Plan searches for Want units of ref (a name or #TAG). The returned plan may
// be insufficient; callers decide whether that is a failure. Success records
// are updated only from the plan returned here, never from abandoned branches.
func (p *Planner) Plan(ctx context.Context, ref string, count int, caps Capabilities, pctx Context, soFar *plan.Plan) (*plan.Plan, error) {
	out, err := p.search(ctx, ref, count, caps, pctx, soFar)
	if err != nil {
		return nil, err
	}
	p.remember(ctx, out)
	return out, nil
}

// search is the recursive entry evaluators use for sub-goals.
func (p *Planner) search(ctx context.Context, ref string, count int, caps Capabilities, pctx Context, soFar *plan.Plan) (*plan.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := plan.ParseRef(ref)
	if r.Tag {
		names, ok := p.kb.ResolveTag(r.Name)
		if !ok || len(names) == 0 {
			p.log.Debug("unknown tag", zap.String("tag", ref))
			return plan.New(ref, count), nil
		}
		return p.planAlternatives(ctx, names, count, caps, pctx, soFar)
	}
	return p.planItem(ctx, r.Name, count, caps, pctx, soFar)
}

// remember credits every item the kept plan fully covers, once each. Plans
// that fall short or lean on an open request credit nothing.
func (p *Planner) remember(ctx context.Context, out *plan.Plan) {
	if p.mem == nil || !out.Sufficient() || out.Uses(plan.KindOpenRequest) {
		return
	}
	seen := map[string]bool{}
	var visit func(n *plan.Plan)
	visit = func(n *plan.Plan) {
		if n.Target != "" && !plan.ParseRef(n.Target).Tag && !seen[n.Target] && n.Sufficient() {
			seen[n.Target] = true
			p.mem.Succeeded(ctx, n.Target)
		}
		for _, e := range n.Elements {
			if e.Sub != nil {
				visit(e.Sub)
			}
		}
	}
	visit(out)
}

// planAlternatives plans each candidate name and keeps the best: sufficient
// beats insufficient, then cheaper. A free sufficient plan ends the search.
func (p *Planner) planAlternatives(ctx context.Context, names []string, count int, caps Capabilities, pctx Context, soFar *plan.Plan) (*plan.Plan, error) {
	var best *plan.Plan
	for _, name := range memory.RankNames(p.mem, names) {
		cand, err := p.planItem(ctx, name, count, caps, pctx, soFar)
		if err != nil {
			return nil, err
		}
		if best == nil || plan.Better(cand, best) {
			best = cand
		}
		if best.Sufficient() && best.Cost() == 0 {
			break
		}
	}
	return best, nil
}

func (p *Planner) planItem(ctx context.Context, item string, count int, caps Capabilities, pctx Context, soFar *plan.Plan) (*plan.Plan, error) {
	out := plan.New(item, count)
	if pctx.Has(item) {
		p.log.Debug("cycle guard", zap.String("item", item), zap.Strings("ancestry", pctx.Ancestry))
		return out, nil
	}
	if pctx.Depth > p.cfg.MaxDepth {
		p.log.Debug("depth guard", zap.String("item", item), zap.Int("depth", pctx.Depth))
		return out, nil
	}
	inner := pctx.Enter(item)

	for {
		need := count - out.Result()
		if need <= 0 {
			break
		}
		req := Request{Item: item, Need: need, Caps: caps, Context: inner, SoFar: plan.Join(soFar, out)}
		best, by, err := p.round(ctx, req)
		if err != nil {
			return nil, err
		}
		if best == nil {
			break
		}
		p.log.Debug("candidate chosen",
			zap.String("item", item), zap.Int("need", need), zap.String("evaluator", by),
			zap.Int("result", best.Result()), zap.Float64("cost", best.Cost()))
		out.AddSub(best)
	}
	return out, nil
}

// round asks every enabled evaluator once and keeps the cheapest plan that
// contributes anything; equal costs go to the larger result.
func (p *Planner) round(ctx context.Context, req Request) (*plan.Plan, string, error) {
	var (
		best     *plan.Plan
		by       string
		bestCost = math.Inf(1)
	)
	for _, ev := range p.evaluators {
		if !ev.Enabled(req.Caps) {
			continue
		}
		if best != nil && best.Result() >= req.Need && bestCost < ev.Floor() {
			break
		}
		cand, err := ev.Evaluate(ctx, req)
		if err != nil {
			return nil, "", err
		}
		if cand == nil || cand.Result() <= 0 {
			continue
		}
		c := cand.Cost()
		if c < bestCost || (c == bestCost && cand.Result() > best.Result()) {
			best, by, bestCost = cand, ev.Name(), c
		}
	}
	return best, by, nil
}

// self is a convenience for evaluators.
func (p *Planner) self(ctx context.Context) (world.Self, error) {
	return p.env.World.Self(ctx)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
