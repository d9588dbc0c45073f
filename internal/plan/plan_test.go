package plan

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/world"
)

var stickRecipe = knowledge.RecipeDef{
	RecipeID: "stick",
	Kind:     knowledge.KindCraft,
	Station:  knowledge.StationHand,
	Inputs:   []knowledge.ItemCount{{Item: "#PLANKS", Count: 2}},
	Outputs:  []knowledge.ItemCount{{Item: "STICK", Count: 4}},
}

func chest(x int) ContainerRef {
	pos := world.Vec3{X: x}
	return ContainerRef{ID: world.ContainerID("CHEST", pos), Type: "CHEST", Pos: pos, Dimension: "OVERWORLD"}
}

// sample builds: 6 STICK <- [planks sub-plan: inventory 2, container 2], craft x2, inventory 2 STICK.
func sample() *Plan {
	planks := New("OAK_PLANK", 4).
		Add(FromInventory{Name: "OAK_PLANK", N: 2}).
		Add(FromContainer{Name: "OAK_PLANK", N: 2, Container: chest(3)})
	return New("STICK", 10).
		AddSub(planks).
		Add(Craft{Name: "STICK", Recipe: stickRecipe, Times: 2, Want: 8}).
		Add(FromInventory{Name: "STICK", N: 2})
}

func TestFlattenDepthFirst(t *testing.T) {
	got := sample().Flatten()
	kinds := make([]Kind, len(got))
	for i, s := range got {
		kinds[i] = s.Kind()
	}
	want := []Kind{KindInventory, KindContainer, KindCraft, KindInventory}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("flatten order (-want +got):\n%s", diff)
	}
}

func TestEmptyAndAddSubDropsEmpty(t *testing.T) {
	p := New("X", 1).AddSub(New("Y", 1)).AddSub(nil)
	if !p.Empty() || len(p.Elements) != 0 {
		t.Fatalf("expected empty plan, got %+v", p.Elements)
	}
	var nilPlan *Plan
	if !nilPlan.Empty() || nilPlan.Result() != 0 || nilPlan.Cost() != 0 || nilPlan.Sufficient() {
		t.Fatalf("nil plan should be empty and insufficient")
	}
}

func TestResultAndCost(t *testing.T) {
	p := sample()
	if got := p.Result(); got != 10 {
		t.Fatalf("Result: got %d want 10", got)
	}
	if !p.Sufficient() {
		t.Fatalf("expected sufficient")
	}
	if got := ResultOf(p, "OAK_PLANK"); got != 4 {
		t.Fatalf("ResultOf planks: got %d want 4", got)
	}
	if got, want := p.Cost(), 1.1; math.Abs(got-want) > 1e-9 {
		t.Fatalf("Cost: got %v want %v", got, want)
	}
	if !p.Uses(KindCraft) || p.Uses(KindOpenRequest) {
		t.Fatalf("Uses mismatch")
	}
}

func TestStepCosts(t *testing.T) {
	cases := []struct {
		step Step
		want float64
	}{
		{FromInventory{}, 0},
		{Navigate{}, 0},
		{FromContainer{}, 0.1},
		{FromBundle{}, 0.1},
		{Dig{}, 0.1},
		{HarvestMob{}, 1},
		{Craft{}, 1},
		{Craft{PlaceSurface: true}, 2},
		{Cook{}, 2},
		{Cook{Source: HeatSourceRef{NeedsFuel: true}}, 4},
		{CooperativeRequest{}, 5},
		{Trade{}, 10},
		{OpenRequest{}, 1000},
	}
	for _, c := range cases {
		if got := StepCost(c.step); got != c.want {
			t.Fatalf("StepCost(%s): got %v want %v", c.step.Kind(), got, c.want)
		}
	}
}

func TestBetter(t *testing.T) {
	cheapShort := New("A", 5).Add(FromInventory{Name: "A", N: 2})
	pricyFull := New("A", 5).Add(Trade{Offer: world.TradeOffer{Output: world.Stack{Item: "A", Count: 5}}, Times: 1})
	cheapFull := New("A", 5).Add(FromContainer{Name: "A", N: 5})

	if !Better(pricyFull, cheapShort) {
		t.Fatalf("sufficient plan must beat insufficient one regardless of cost")
	}
	if !Better(cheapFull, pricyFull) {
		t.Fatalf("cheaper sufficient plan must win")
	}
	if Better(nil, cheapShort) || !Better(cheapShort, nil) {
		t.Fatalf("nil handling")
	}
	moreShort := New("A", 5).Add(FromInventory{Name: "A", N: 4})
	if !Better(moreShort, cheapShort) {
		t.Fatalf("equal cost: larger result should win")
	}
}

func TestJoinFlattensBoth(t *testing.T) {
	a := New("A", 1).Add(FromInventory{Name: "A", N: 1})
	b := New("B", 1).Add(FromInventory{Name: "B", N: 1})
	j := Join(a, b)
	got := j.Flatten()
	if len(got) != 2 || got[0].Item() != "A" || got[1].Item() != "B" {
		t.Fatalf("Join flatten: %+v", got)
	}
	if len(a.Elements) != 1 || len(b.Elements) != 1 {
		t.Fatalf("Join mutated inputs")
	}
}

func TestDescribe(t *testing.T) {
	out := Describe(sample())
	for _, want := range []string{"10 STICK (result 10", "  4 OAK_PLANK:", "    take 2 OAK_PLANK from CHEST@3,0,0", "craft 8 STICK via stick x2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("Describe missing %q in:\n%s", want, out)
		}
	}
}
