package plan

import (
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/world"
)

// Predicted is the simulated effect of a step sequence, used only while
// planning. Inventory counts changes to the agent's uncommitted stock: a step
// that delivers items hands them to whoever asked for them, so only surplus
// and returned tools show up as positive deltas.
type Predicted struct {
	Inventory  map[string]int
	Containers map[world.ContainerKey]map[string]int
	Bundles    map[string]map[string]int
	// Peers is how much each cooperating agent has already been asked for.
	Peers map[string]map[string]int
	Mobs  map[string]struct{}
	// Stations counts work surfaces and heat sources the plan places.
	Stations map[string]int
}

// Predict folds steps into a fresh Predicted. It is a pure function of steps.
func Predict(steps []Step) Predicted {
	f := &folder{Predicted{
		Inventory:  map[string]int{},
		Containers: map[world.ContainerKey]map[string]int{},
		Bundles:    map[string]map[string]int{},
		Peers:      map[string]map[string]int{},
		Mobs:       map[string]struct{}{},
		Stations:   map[string]int{},
	}}
	for _, s := range steps {
		_ = s.Accept(f)
	}
	return f.p
}

// PredictPlan is Predict over p's flattening.
func PredictPlan(p *Plan) Predicted { return Predict(p.Flatten()) }

func (p Predicted) InventoryDelta(item string) int { return p.Inventory[item] }

func (p Predicted) ContainerDelta(key world.ContainerKey, item string) int {
	return p.Containers[key][item]
}

func (p Predicted) BundleDelta(bundleID, item string) int { return p.Bundles[bundleID][item] }

func (p Predicted) PeerClaimed(agentID, item string) int { return p.Peers[agentID][item] }

func (p Predicted) MobCommitted(id string) bool {
	_, ok := p.Mobs[id]
	return ok
}

func (p Predicted) StationPlaced(block string) bool { return p.Stations[block] > 0 }

type folder struct{ p Predicted }

func addNested[K comparable](m map[K]map[string]int, k K, item string, n int) {
	inner := m[k]
	if inner == nil {
		inner = map[string]int{}
		m[k] = inner
	}
	inner[item] += n
}

func (f *folder) VisitInventory(s FromInventory) error {
	f.p.Inventory[s.Name] -= s.N
	return nil
}

func (f *folder) VisitContainer(s FromContainer) error {
	addNested(f.p.Containers, s.Container.Key(), s.Name, -s.N)
	return nil
}

func (f *folder) VisitBundle(s FromBundle) error {
	addNested(f.p.Bundles, s.BundleID, s.Name, -s.N)
	return nil
}

func (f *folder) VisitCooperative(s CooperativeRequest) error {
	for _, share := range s.Peers {
		addNested(f.p.Peers, share.AgentID, s.Name, share.Count)
	}
	return nil
}

func (f *folder) VisitOpenRequest(OpenRequest) error { return nil }

// recipe applies a recipe run: inputs were committed by the ingredient
// sub-plans and are consumed here; outputs are credited and Want of the
// target goes to the consumer.
func (f *folder) recipe(outputs []world.Stack, times int, target string, want int) {
	for _, o := range outputs {
		f.p.Inventory[o.Item] += o.Count * times
	}
	f.p.Inventory[target] -= want
}

func (f *folder) VisitCraft(s Craft) error {
	f.recipe(recipeOutputs(s.Recipe.Outputs), s.Times, s.Name, s.Want)
	if s.PlaceSurface {
		f.p.Stations[s.Station]++
	}
	return nil
}

func (f *folder) VisitCook(s Cook) error {
	f.recipe(recipeOutputs(s.Recipe.Outputs), s.Times, s.Name, s.Want)
	if s.Source.Place {
		f.p.Stations[s.Source.Block]++
	}
	return nil
}

func (f *folder) VisitTrade(s Trade) error {
	f.recipe([]world.Stack{s.Offer.Output}, s.Times, s.Offer.Output.Item, s.Want)
	return nil
}

func (f *folder) VisitHarvest(s HarvestMob) error {
	f.p.Mobs[s.MobID] = struct{}{}
	if !s.ToolConsumed && s.Tool != "" {
		f.p.Inventory[s.Tool]++
	}
	return nil
}

func (f *folder) VisitDig(Dig) error { return nil }

func (f *folder) VisitNavigate(Navigate) error { return nil }

func recipeOutputs(out []knowledge.ItemCount) []world.Stack {
	s := make([]world.Stack, len(out))
	for i, o := range out {
		s[i] = world.Stack{Item: o.Item, Count: o.Count}
	}
	return s
}
