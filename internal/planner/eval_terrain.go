package planner

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
)

// Site is a block an exploit can mine repeatedly.
type Site struct {
	Block string
	Pos   world.Vec3
	// Tool is an item or #TAG the agent must hold.
	Tool string
}

// TerrainExploit recognises one renewable world structure.
type TerrainExploit interface {
	Name() string
	Produces(item string) bool
	Locate(ctx context.Context, w world.World, radius int) (Site, bool, error)
}

// CobblestoneGenerator is a cobblestone block touching both water and lava;
// it refills after every dig.
type CobblestoneGenerator struct{}

func (CobblestoneGenerator) Name() string { return "cobblestone_generator" }

func (CobblestoneGenerator) Produces(item string) bool { return item == "COBBLESTONE" }

func (CobblestoneGenerator) Locate(ctx context.Context, w world.World, radius int) (Site, bool, error) {
	ps, err := w.FindBlocks(ctx, "COBBLESTONE", radius)
	if err != nil {
		return Site{}, false, err
	}
	for _, pos := range ps {
		var water, lava bool
		for _, n := range pos.Neighbors6() {
			b, err := w.BlockAt(ctx, n)
			if err != nil {
				return Site{}, false, err
			}
			switch b {
			case "WATER":
				water = true
			case "LAVA":
				lava = true
			}
		}
		if water && lava {
			return Site{Block: "COBBLESTONE", Pos: pos, Tool: "#PICKAXES"}, true, nil
		}
	}
	return Site{}, false, nil
}

type terrainEval struct{ p *Planner }

func (terrainEval) Name() string                { return "terrain" }
func (terrainEval) Enabled(c Capabilities) bool { return c.Dig }
func (terrainEval) Floor() float64              { return plan.CostDig }

// Evaluate yields a single-unit dig at the first matching site, provided the
// agent holds a suitable tool.
func (e terrainEval) Evaluate(ctx context.Context, req Request) (*plan.Plan, error) {
	var inv map[string]int
	for _, ex := range e.p.exploits {
		if !ex.Produces(req.Item) {
			continue
		}
		site, ok, err := ex.Locate(ctx, e.p.env.World, e.p.cfg.SearchRadius)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if inv == nil {
			if inv, err = e.p.env.World.Inventory(ctx); err != nil {
				return nil, err
			}
		}
		pred := req.Predicted()
		tool := ""
		for _, name := range e.p.kb.Members(site.Tool) {
			if inv[name]+pred.InventoryDelta(name) > 0 {
				tool = name
				break
			}
		}
		if tool == "" {
			continue
		}
		return plan.New(req.Item, req.Need).
			Add(plan.Navigate{Target: site.Pos, Proximity: e.p.cfg.Proximity, Reason: ex.Name()}).
			Add(plan.Dig{Name: req.Item, N: 1, Block: site.Block, Pos: site.Pos, Tool: tool, Retries: e.p.cfg.DigRetries, Exploit: ex.Name()}), nil
	}
	return nil, nil
}
