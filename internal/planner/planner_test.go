package planner

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"voxelcraft.ai/quartermaster/internal/claims"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/memory"
	"voxelcraft.ai/quartermaster/internal/plan"
	"voxelcraft.ai/quartermaster/internal/world"
	"voxelcraft.ai/quartermaster/internal/world/memworld"
)

func ic(item string, n int) knowledge.ItemCount { return knowledge.ItemCount{Item: item, Count: n} }

func craft(id, station string, out knowledge.ItemCount, in ...knowledge.ItemCount) knowledge.RecipeDef {
	return knowledge.RecipeDef{RecipeID: id, Kind: knowledge.KindCraft, Station: station, Inputs: in, Outputs: []knowledge.ItemCount{out}}
}

func cook(id string, heat []string, out knowledge.ItemCount, in ...knowledge.ItemCount) knowledge.RecipeDef {
	return knowledge.RecipeDef{RecipeID: id, Kind: knowledge.KindCook, HeatSources: heat, Inputs: in, Outputs: []knowledge.ItemCount{out}}
}

func testKB() *knowledge.Base {
	return knowledge.Build(knowledge.Defs{
		Items: []knowledge.ItemDef{
			{ID: "CRAFTING_BENCH", Kind: "STATION", PlaceAs: "CRAFTING_BENCH"},
			{ID: "FURNACE", Kind: "STATION", PlaceAs: "FURNACE"},
			{ID: "CAMPFIRE", Kind: "STATION", PlaceAs: "CAMPFIRE"},
			{ID: "A"}, {ID: "B"}, {ID: "D"}, {ID: "E"}, {ID: "G"},
			{ID: "OAK_PLANK"}, {ID: "BIRCH_PLANK"}, {ID: "COAL"}, {ID: "IRON_ORE"},
			{ID: "SHEARS"}, {ID: "COBBLESTONE"},
		},
		Recipes: []knowledge.RecipeDef{
			craft("c_from_a", knowledge.StationHand, ic("C", 1), ic("A", 4), ic("B", 1)),
			craft("stick", knowledge.StationHand, ic("STICK", 4), ic("#PLANKS", 2)),
			craft("bench", knowledge.StationHand, ic("CRAFTING_BENCH", 1), ic("#PLANKS", 4)),
			craft("wood_pickaxe", "CRAFTING_BENCH", ic("WOOD_PICKAXE", 1), ic("#PLANKS", 3), ic("STICK", 2)),
			craft("x_from_y", knowledge.StationHand, ic("X", 1), ic("Y", 1)),
			craft("y_from_x", knowledge.StationHand, ic("Y", 1), ic("X", 1)),
			craft("z_from_z", knowledge.StationHand, ic("Z", 2), ic("Z", 1)),
			craft("lamp_from_a", knowledge.StationHand, ic("LAMP", 1), ic("A", 1)),
			craft("lamp_from_b", knowledge.StationHand, ic("LAMP", 1), ic("B", 1)),
			cook("iron_ingot", []string{"FURNACE"}, ic("IRON_INGOT", 1), ic("IRON_ORE", 1)),
			cook("cooked_beef", []string{"CAMPFIRE", "FURNACE"}, ic("COOKED_BEEF", 1), ic("RAW_BEEF", 1)),
		},
		Tags: map[string][]string{
			"PLANKS":   {"OAK_PLANK", "BIRCH_PLANK"},
			"PICKAXES": {"WOOD_PICKAXE"},
		},
		HeatSources: []knowledge.HeatSource{
			{Block: "FURNACE", Item: "FURNACE", NeedsFuel: true},
			{Block: "CAMPFIRE", Item: "CAMPFIRE"},
		},
		Fuels:      []knowledge.Fuel{{Item: "COAL", Burn: 8}},
		MobSources: []knowledge.MobSource{{Item: "WOOL", Mob: "SHEEP", Tool: "SHEARS", Yield: 1, ExcludeTag: "sheared"}},
	})
}

type fixture struct {
	p   *Planner
	w   *memworld.World
	mem *memory.Cache
	reg *claims.Memory
}

func newFixture(t *testing.T, snap memworld.Snapshot) fixture {
	t.Helper()
	if snap.Self.ID == "" {
		snap.Self = world.Self{ID: "me", Dimension: "OVERWORLD"}
	}
	kb := testKB()
	w := memworld.New(snap, kb)
	reg := claims.NewMemory()
	mem := memory.New(nil, nil)
	return fixture{p: New(kb, w.Env(reg), mem, DefaultConfig(), nil), w: w, mem: mem, reg: reg}
}

func (f fixture) plan(t *testing.T, item string, n int, caps Capabilities) *plan.Plan {
	t.Helper()
	p, err := f.p.Plan(context.Background(), item, n, caps, Context{}, nil)
	if err != nil {
		t.Fatalf("Plan(%s, %d): %v", item, n, err)
	}
	return p
}

func kinds(steps []plan.Step) []plan.Kind {
	out := make([]plan.Kind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind()
	}
	return out
}

func TestInventoryOnlyIsFree(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{
		Inventory: map[string]int{"D": 12},
		Containers: []world.ContainerRecord{
			{Type: "CHEST", Pos: world.Vec3{X: 2}, Stock: map[string]int{"D": 20}},
		},
	})
	p := f.plan(t, "D", 12, AllCapabilities())
	if !p.Sufficient() || p.Cost() != 0 {
		t.Fatalf("want free sufficient plan, got result %d cost %v\n%s", p.Result(), p.Cost(), plan.Describe(p))
	}
	if diff := cmp.Diff([]plan.Step{plan.FromInventory{Name: "D", N: 12}}, p.Flatten()); diff != "" {
		t.Fatalf("steps (-want +got):\n%s", diff)
	}
	if f.mem.Weight("D") != 1 {
		t.Fatalf("success memory not updated")
	}
}

func TestContainersNearestFirstWithoutOverclaim(t *testing.T) {
	near := world.ContainerRecord{Type: "CHEST", Pos: world.Vec3{X: 2}, Stock: map[string]int{"D": 10}}
	far := world.ContainerRecord{Type: "CHEST", Pos: world.Vec3{X: 6}, Stock: map[string]int{"D": 5}}
	outOfRegion := world.ContainerRecord{Type: "CHEST", Pos: world.Vec3{X: 500}, Stock: map[string]int{"D": 50}}
	f := newFixture(t, memworld.Snapshot{Containers: []world.ContainerRecord{far, outOfRegion, near}})

	p := f.plan(t, "D", 12, Capabilities{UseContainers: true})
	steps := p.Flatten()
	if len(steps) != 2 {
		t.Fatalf("want 2 steps, got:\n%s", plan.Describe(p))
	}
	first, second := steps[0].(plan.FromContainer), steps[1].(plan.FromContainer)
	if first.Container.Pos != near.Pos || first.N != 10 {
		t.Fatalf("first step: %+v", first)
	}
	if second.Container.Pos != far.Pos || second.N != 2 {
		t.Fatalf("second step: %+v", second)
	}
	if p.Result() != 12 {
		t.Fatalf("result %d", p.Result())
	}
}

func TestRecipeShortIngredientIsNotViable(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"A": 3, "B": 1}})
	caps := Capabilities{UseInventory: true, Craft: true}

	p := f.plan(t, "C", 1, caps)
	if got := p.Result(); got != 0 {
		t.Fatalf("result: got %d want 0\n%s", got, plan.Describe(p))
	}
	cand, err := craftEval{f.p}.Evaluate(context.Background(), Request{Item: "C", Need: 1, Caps: caps, Context: Context{}.Enter("C")})
	if err != nil || cand != nil {
		t.Fatalf("craft evaluator should return nil, got %v %v", cand, err)
	}
}

func TestTradeRejectedWhenPriceUnaffordable(t *testing.T) {
	partner := world.TradePartner{
		ID: "V1", Name: "villager", Pos: world.Vec3{X: 3},
		Offers: []world.TradeOffer{{Input1: world.Stack{Item: "E", Count: 3}, Output: world.Stack{Item: "F", Count: 1}}},
	}
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"E": 2}, Traders: []world.TradePartner{partner}})
	caps := Capabilities{UseInventory: true, Trade: true}

	cand, err := tradeEval{f.p}.Evaluate(context.Background(), Request{Item: "F", Need: 1, Caps: caps, Context: Context{}.Enter("F")})
	if err != nil || cand != nil {
		t.Fatalf("trade evaluator should return nil, got %v %v", cand, err)
	}
	if p := f.plan(t, "F", 1, caps); p.Result() != 0 {
		t.Fatalf("result %d", p.Result())
	}

	f.w.SetCount("E", 6)
	p := f.plan(t, "F", 2, caps)
	if !p.Sufficient() || !p.Uses(plan.KindTrade) {
		t.Fatalf("affordable trade not planned:\n%s", plan.Describe(p))
	}
}

func TestTradeRespectsRemainingUses(t *testing.T) {
	partner := world.TradePartner{
		ID: "V1", Name: "villager",
		Offers: []world.TradeOffer{{Input1: world.Stack{Item: "E", Count: 1}, Output: world.Stack{Item: "F", Count: 1}, Uses: 1, MaxUses: 3}},
	}
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"E": 10}, Traders: []world.TradePartner{partner}})
	p := f.plan(t, "F", 5, Capabilities{UseInventory: true, Trade: true})
	if p.Result() != 2 {
		t.Fatalf("result: got %d want 2\n%s", p.Result(), plan.Describe(p))
	}
}

func TestDisabledOpenRequestIsNeverUsed(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{})
	caps := AllCapabilities()
	caps.RequestAnyone = false
	p := f.plan(t, "G", 2, caps)
	if p.Result() != 0 || p.Uses(plan.KindOpenRequest) {
		t.Fatalf("unexpected plan:\n%s", plan.Describe(p))
	}

	p = f.plan(t, "G", 2, AllCapabilities())
	if diff := cmp.Diff([]plan.Step{plan.OpenRequest{Name: "G", N: 2}}, p.Flatten()); diff != "" {
		t.Fatalf("steps (-want +got):\n%s", diff)
	}
	if f.mem.Weight("G") != 0 {
		t.Fatalf("open-request plans must not count as success")
	}
}

func TestCyclesTerminateWithEmptyResult(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{})
	caps := Capabilities{UseInventory: true, Craft: true}
	for _, item := range []string{"X", "Y", "Z"} {
		if p := f.plan(t, item, 1, caps); p.Result() != 0 {
			t.Fatalf("%s: result %d\n%s", item, p.Result(), plan.Describe(p))
		}
	}
}

func TestDepthGuard(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"D": 1}})
	bound := DefaultConfig().MaxDepth
	p, err := f.p.Plan(context.Background(), "D", 1, AllCapabilities(), Context{Depth: bound}, nil)
	if err != nil || !p.Sufficient() {
		t.Fatalf("at the bound: %v\n%s", err, plan.Describe(p))
	}
	p, err = f.p.Plan(context.Background(), "D", 1, AllCapabilities(), Context{Depth: bound + 1}, nil)
	if err != nil || !p.Empty() {
		t.Fatalf("past the bound: %v\n%s", err, plan.Describe(p))
	}
}

func TestTagPicksHeldAlternative(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"BIRCH_PLANK": 2}})
	p := f.plan(t, "STICK", 4, Capabilities{UseInventory: true, Craft: true})
	if !p.Sufficient() {
		t.Fatalf("insufficient:\n%s", plan.Describe(p))
	}
	steps := p.Flatten()
	if diff := cmp.Diff([]plan.Kind{plan.KindInventory, plan.KindCraft}, kinds(steps)); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
	if inv := steps[0].(plan.FromInventory); inv.Name != "BIRCH_PLANK" || inv.N != 2 {
		t.Fatalf("ingredient step: %+v", inv)
	}
}

func TestCraftPlansWorkSurfaceWhenNoneInRange(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"OAK_PLANK": 7, "STICK": 2}})
	p := f.plan(t, "WOOD_PICKAXE", 1, Capabilities{UseInventory: true, Craft: true})
	if !p.Sufficient() {
		t.Fatalf("insufficient:\n%s", plan.Describe(p))
	}
	var pick plan.Craft
	var benchCrafted bool
	for _, s := range p.Flatten() {
		if c, ok := s.(plan.Craft); ok {
			switch c.Name {
			case "WOOD_PICKAXE":
				pick = c
			case "CRAFTING_BENCH":
				benchCrafted = true
			}
		}
	}
	if !benchCrafted || !pick.PlaceSurface || pick.HasSurface {
		t.Fatalf("bench should be crafted and placed:\n%s", plan.Describe(p))
	}
	if got, want := p.Cost(), float64(plan.CostCraft+plan.CostCraft+plan.CostSurface); got != want {
		t.Fatalf("cost: got %v want %v", got, want)
	}
}

func TestCraftUsesWorkSurfaceInRange(t *testing.T) {
	bench := world.Vec3{X: 3}
	f := newFixture(t, memworld.Snapshot{
		Inventory: map[string]int{"OAK_PLANK": 3, "STICK": 2},
		Blocks:    []memworld.Block{{Name: "CRAFTING_BENCH", Pos: bench}},
	})
	p := f.plan(t, "WOOD_PICKAXE", 1, Capabilities{UseInventory: true, Craft: true})
	steps := p.Flatten()
	want := []plan.Kind{plan.KindInventory, plan.KindInventory, plan.KindNavigate, plan.KindCraft}
	if diff := cmp.Diff(want, kinds(steps)); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
	c := steps[3].(plan.Craft)
	if !c.HasSurface || c.Surface != bench || c.PlaceSurface {
		t.Fatalf("craft step: %+v", c)
	}
}

func TestCookWithFuelledSourceInRange(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{
		Inventory: map[string]int{"IRON_ORE": 3, "COAL": 1},
		Blocks:    []memworld.Block{{Name: "FURNACE", Pos: world.Vec3{X: 3}}},
	})
	p := f.plan(t, "IRON_INGOT", 3, Capabilities{UseInventory: true, Cook: true})
	if !p.Sufficient() {
		t.Fatalf("insufficient:\n%s", plan.Describe(p))
	}
	var ck plan.Cook
	for _, s := range p.Flatten() {
		if c, ok := s.(plan.Cook); ok {
			ck = c
		}
	}
	if ck.Source.Block != "FURNACE" || !ck.Source.NeedsFuel || ck.Fuel != "COAL" || ck.FuelUnits != 1 || ck.Times != 3 {
		t.Fatalf("cook step: %+v", ck)
	}
	if p.Cost() != plan.CostCookFuel {
		t.Fatalf("cost %v", p.Cost())
	}
}

func TestCookPrefersFuelFreeSource(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{
		Inventory: map[string]int{"RAW_BEEF": 2, "COAL": 1},
		Blocks: []memworld.Block{
			{Name: "FURNACE", Pos: world.Vec3{X: 2}},
			{Name: "CAMPFIRE", Pos: world.Vec3{X: 5}},
		},
	})
	p := f.plan(t, "COOKED_BEEF", 2, Capabilities{UseInventory: true, Cook: true})
	steps := p.Flatten()
	ck, ok := steps[len(steps)-1].(plan.Cook)
	if !ok || ck.Source.Block != "CAMPFIRE" || ck.FuelUnits != 0 || p.Cost() != plan.CostCook {
		t.Fatalf("expected fuel-free campfire:\n%s", plan.Describe(p))
	}
}

func TestHarvestSkipsCommittedAndTaggedMobs(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{
		Inventory: map[string]int{"SHEARS": 1},
		Entities: []world.Entity{
			{ID: "S3", Type: "SHEEP", Pos: world.Vec3{X: 1}, Tags: []string{"sheared"}},
			{ID: "S1", Type: "SHEEP", Pos: world.Vec3{X: 2}},
			{ID: "S2", Type: "SHEEP", Pos: world.Vec3{X: 5}},
		},
	})
	p := f.plan(t, "WOOL", 2, Capabilities{UseInventory: true, HarvestMobs: true})
	var mobs []string
	for _, s := range p.Flatten() {
		if h, ok := s.(plan.HarvestMob); ok {
			mobs = append(mobs, h.MobID)
		}
	}
	if diff := cmp.Diff([]string{"S1", "S2"}, mobs); diff != "" {
		t.Fatalf("mobs (-want +got):\n%s", diff)
	}
	if p.Result() != 2 {
		t.Fatalf("result %d", p.Result())
	}
}

func TestCobblestoneGeneratorNeedsPickaxe(t *testing.T) {
	snap := memworld.Snapshot{
		Blocks: []memworld.Block{
			{Name: "LAVA", Pos: world.Vec3{X: 1}},
			{Name: "COBBLESTONE", Pos: world.Vec3{X: 2}},
			{Name: "WATER", Pos: world.Vec3{X: 3}},
			{Name: "COBBLESTONE", Pos: world.Vec3{X: 0, Z: 9}},
		},
	}
	caps := Capabilities{UseInventory: true, Dig: true}

	f := newFixture(t, snap)
	if p := f.plan(t, "COBBLESTONE", 1, caps); p.Result() != 0 {
		t.Fatalf("dug without a pickaxe:\n%s", plan.Describe(p))
	}

	snap.Inventory = map[string]int{"WOOD_PICKAXE": 1}
	f = newFixture(t, snap)
	p := f.plan(t, "COBBLESTONE", 3, caps)
	var digs int
	for _, s := range p.Flatten() {
		if d, ok := s.(plan.Dig); ok {
			digs++
			if d.Pos != (world.Vec3{X: 2}) || d.N != 1 || d.Tool != "WOOD_PICKAXE" || d.Retries != DefaultConfig().DigRetries {
				t.Fatalf("dig step: %+v", d)
			}
		}
	}
	if digs != 3 || !p.Sufficient() {
		t.Fatalf("digs %d:\n%s", digs, plan.Describe(p))
	}
}

func TestCooperativeSharesExcludeSelf(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{})
	ctx := context.Background()
	_ = f.reg.SetSpare(ctx, "me", map[string]int{"COAL": 10})
	_ = f.reg.SetSpare(ctx, "A2", map[string]int{"COAL": 2})
	_ = f.reg.SetSpare(ctx, "A3", map[string]int{"COAL": 5})

	p := f.plan(t, "COAL", 6, Capabilities{RequestCooperative: true})
	want := []plan.Step{plan.CooperativeRequest{Name: "COAL", N: 6, Peers: []plan.PeerShare{{AgentID: "A3", Count: 5}, {AgentID: "A2", Count: 1}}}}
	if diff := cmp.Diff(want, p.Flatten()); diff != "" {
		t.Fatalf("steps (-want +got):\n%s", diff)
	}

	p = f.plan(t, "COAL", 9, Capabilities{RequestCooperative: true})
	if p.Result() != 7 || p.Sufficient() {
		t.Fatalf("peers hold 7 spare, got result %d", p.Result())
	}
}

func TestCapabilityGatesEvaluators(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"D": 5}})
	if p := f.plan(t, "D", 1, Capabilities{Craft: true}); p.Result() != 0 {
		t.Fatalf("inventory used without capability")
	}
}

func TestContextCancelled(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.p.Plan(ctx, "D", 1, AllCapabilities(), Context{}, nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestAbandonedBranchesLeaveMemoryAlone(t *testing.T) {
	f := newFixture(t, memworld.Snapshot{Inventory: map[string]int{"A": 4}})
	p := f.plan(t, "C", 1, Capabilities{UseInventory: true, Craft: true})
	if p.Result() != 0 {
		t.Fatalf("result %d\n%s", p.Result(), plan.Describe(p))
	}
	if diff := cmp.Diff(map[string]memory.Record{}, f.mem.Snapshot()); diff != "" {
		t.Fatalf("records after a failed search (-want +got):\n%s", diff)
	}

	f = newFixture(t, memworld.Snapshot{Inventory: map[string]int{"BIRCH_PLANK": 2}})
	f.plan(t, "STICK", 4, Capabilities{UseInventory: true, Craft: true})
	for item, want := range map[string]int{"STICK": 1, "BIRCH_PLANK": 1, "OAK_PLANK": 0} {
		if got := f.mem.Weight(item); got != want {
			t.Fatalf("weight %s: got %d want %d", item, got, want)
		}
	}
}

func TestMemoryOrdersTagMembers(t *testing.T) {
	caps := Capabilities{UseInventory: true, Craft: true}
	snap := memworld.Snapshot{Inventory: map[string]int{"OAK_PLANK": 2, "BIRCH_PLANK": 2}}
	plankUsed := func(p *plan.Plan) string {
		return p.Flatten()[0].(plan.FromInventory).Name
	}

	f := newFixture(t, snap)
	if got := plankUsed(f.plan(t, "STICK", 4, caps)); got != "OAK_PLANK" {
		t.Fatalf("without records: %s", got)
	}

	f = newFixture(t, snap)
	f.mem.Succeeded(context.Background(), "BIRCH_PLANK")
	p := f.plan(t, "STICK", 4, caps)
	if got := plankUsed(p); got != "BIRCH_PLANK" {
		t.Fatalf("with a birch record: %s\n%s", got, plan.Describe(p))
	}
	if f.mem.Weight("BIRCH_PLANK") != 2 || f.mem.Weight("OAK_PLANK") != 0 {
		t.Fatalf("records: %+v", f.mem.Snapshot())
	}
}

func TestMemoryOrdersRecipes(t *testing.T) {
	caps := Capabilities{UseInventory: true, Craft: true}
	snap := memworld.Snapshot{Inventory: map[string]int{"A": 1, "B": 1}}
	recipeUsed := func(p *plan.Plan) string {
		for _, s := range p.Flatten() {
			if c, ok := s.(plan.Craft); ok {
				return c.Recipe.RecipeID
			}
		}
		return ""
	}

	f := newFixture(t, snap)
	if got := recipeUsed(f.plan(t, "LAMP", 1, caps)); got != "lamp_from_a" {
		t.Fatalf("without records: %s", got)
	}

	f = newFixture(t, snap)
	f.mem.Succeeded(context.Background(), "B")
	p := f.plan(t, "LAMP", 1, caps)
	if got := recipeUsed(p); got != "lamp_from_b" {
		t.Fatalf("with a B record: %s\n%s", got, plan.Describe(p))
	}
	if p.Cost() != plan.CostCraft {
		t.Fatalf("cost %v", p.Cost())
	}
}
