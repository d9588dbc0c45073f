// Package knowledge is the read-only recipe and tag catalog the planner
// consults. Catalogs are JSON files validated against embedded JSON Schemas and
// digested the same way the server digests its catalogs, so a client can tell
// whether its copy is stale.
package knowledge

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	KindCraft = "craft"
	KindCook  = "cook"

	StationHand = "HAND"
)

type ItemDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD","STATION","BUNDLE"
	PlaceAs string `json:"place_as,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// RecipeDef covers both crafting and cooking. Crafting recipes name one
// Station (HAND needs none); cooking recipes list acceptable HeatSources.
// Input items may be tags ("#PLANKS").
type RecipeDef struct {
	RecipeID    string      `json:"recipe_id"`
	Kind        string      `json:"kind"`
	Station     string      `json:"station,omitempty"`
	HeatSources []string    `json:"heat_sources,omitempty"`
	Inputs      []ItemCount `json:"inputs"`
	Outputs     []ItemCount `json:"outputs"`
	TimeTicks   int         `json:"time_ticks,omitempty"`
}

// Yield is how many of item one run of the recipe produces.
func (r RecipeDef) Yield(item string) int {
	n := 0
	for _, o := range r.Outputs {
		if o.Item == item {
			n += o.Count
		}
	}
	return n
}

// NeedsStation reports whether a crafting recipe needs a work surface.
func (r RecipeDef) NeedsStation() bool {
	return r.Kind == KindCraft && r.Station != "" && r.Station != StationHand
}

type HeatSource struct {
	Block     string `json:"block"`
	Item      string `json:"item"`
	NeedsFuel bool   `json:"needs_fuel"`
}

// Fuel burns for Burn cooking operations per unit.
type Fuel struct {
	Item string  `json:"item"`
	Burn float64 `json:"burn"`
}

// Units returns the number of fuel items needed for ops cooking operations.
func (f Fuel) Units(ops int) int {
	if f.Burn <= 0 || ops <= 0 {
		return 0
	}
	return int(math.Ceil(float64(ops)/f.Burn - 1e-9))
}

// MobSource describes an item obtained by using Tool on a passive Mob.
// ExcludeTag marks individuals that cannot currently yield (e.g. "sheared").
type MobSource struct {
	Item       string `json:"item"`
	Mob        string `json:"mob"`
	Tool       string `json:"tool"`
	Consumed   bool   `json:"consumed"`
	Yield      int    `json:"yield"`
	ExcludeTag string `json:"exclude_tag,omitempty"`
}

// Defs is the raw catalog content before indexing.
type Defs struct {
	Items       []ItemDef
	Recipes     []RecipeDef
	Tags        map[string][]string
	HeatSources []HeatSource
	Fuels       []Fuel
	MobSources  []MobSource
}

type Base struct {
	items       map[string]ItemDef
	craft       map[string][]RecipeDef
	cook        map[string][]RecipeDef
	tags        map[string][]string
	heat        []HeatSource
	heatByBlock map[string]HeatSource
	fuels       []Fuel
	mobs        map[string][]MobSource
	byID        map[string]RecipeDef
	placers     map[string]string
	names       []string

	Digest string
}

// Build indexes defs. Recipes are kept in id order so planning is deterministic.
func Build(d Defs) *Base {
	b := &Base{
		items:       map[string]ItemDef{},
		craft:       map[string][]RecipeDef{},
		cook:        map[string][]RecipeDef{},
		tags:        map[string][]string{},
		heatByBlock: map[string]HeatSource{},
		mobs:        map[string][]MobSource{},
		byID:        map[string]RecipeDef{},
		placers:     map[string]string{},
	}
	known := map[string]struct{}{}
	for _, it := range d.Items {
		b.items[it.ID] = it
		known[it.ID] = struct{}{}
		if it.PlaceAs != "" {
			b.placers[it.PlaceAs] = it.ID
		}
	}

	recipes := append([]RecipeDef(nil), d.Recipes...)
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].RecipeID < recipes[j].RecipeID })
	for _, r := range recipes {
		b.byID[r.RecipeID] = r
		seen := map[string]bool{}
		for _, o := range r.Outputs {
			if seen[o.Item] {
				continue
			}
			seen[o.Item] = true
			known[o.Item] = struct{}{}
			if r.Kind == KindCook {
				b.cook[o.Item] = append(b.cook[o.Item], r)
			} else {
				b.craft[o.Item] = append(b.craft[o.Item], r)
			}
		}
	}

	for tag, members := range d.Tags {
		tag = strings.TrimPrefix(tag, "#")
		ms := append([]string(nil), members...)
		sort.Strings(ms)
		b.tags[tag] = ms
		for _, m := range ms {
			known[m] = struct{}{}
		}
	}

	b.heat = append(b.heat, d.HeatSources...)
	sort.SliceStable(b.heat, func(i, j int) bool {
		// Fuel-free sources first.
		return !b.heat[i].NeedsFuel && b.heat[j].NeedsFuel
	})
	for _, h := range b.heat {
		b.heatByBlock[h.Block] = h
	}

	b.fuels = append(b.fuels, d.Fuels...)
	sort.SliceStable(b.fuels, func(i, j int) bool { return b.fuels[i].Burn > b.fuels[j].Burn })

	for _, m := range d.MobSources {
		if m.Yield <= 0 {
			m.Yield = 1
		}
		b.mobs[m.Item] = append(b.mobs[m.Item], m)
		known[m.Item] = struct{}{}
	}

	b.names = make([]string, 0, len(known))
	for n := range known {
		b.names = append(b.names, n)
	}
	sort.Strings(b.names)
	return b
}

func (b *Base) Item(name string) (ItemDef, bool) {
	it, ok := b.items[name]
	return it, ok
}

// Known reports whether the catalog mentions name anywhere.
func (b *Base) Known(name string) bool {
	i := sort.SearchStrings(b.names, name)
	return i < len(b.names) && b.names[i] == name
}

// Recipe looks a recipe up by id.
func (b *Base) Recipe(id string) (RecipeDef, bool) {
	r, ok := b.byID[id]
	return r, ok
}

// PlacerFor returns the item that places as block; the block name itself when
// no item declares it.
func (b *Base) PlacerFor(block string) string {
	if it, ok := b.placers[block]; ok {
		return it
	}
	return block
}

// Members expands ref: a tag to its members, a name to itself.
func (b *Base) Members(ref string) []string {
	if strings.HasPrefix(ref, "#") {
		ms, _ := b.ResolveTag(ref)
		return ms
	}
	return []string{ref}
}

func (b *Base) CraftRecipes(item string) []RecipeDef { return b.craft[item] }

func (b *Base) CookRecipes(item string) []RecipeDef { return b.cook[item] }

// ResolveTag returns the concrete members of tag ("#PLANKS" or "PLANKS").
func (b *Base) ResolveTag(tag string) ([]string, bool) {
	ms, ok := b.tags[strings.TrimPrefix(tag, "#")]
	return ms, ok
}

// HeatSources lists heat sources, fuel-free first.
func (b *Base) HeatSources() []HeatSource { return b.heat }

func (b *Base) HeatSource(block string) (HeatSource, bool) {
	h, ok := b.heatByBlock[block]
	return h, ok
}

// Fuels lists fuels, longest burning first.
func (b *Base) Fuels() []Fuel { return b.fuels }

func (b *Base) MobSources(item string) []MobSource { return b.mobs[item] }

// MobSourcesOf lists what creatures of type mob can yield, by item.
func (b *Base) MobSourcesOf(mob string) []MobSource {
	var out []MobSource
	for _, ms := range b.mobs {
		for _, m := range ms {
			if m.Mob == mob {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Suggest returns the closest known name to an unknown one, or "".
func (b *Base) Suggest(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	best, bestDist := "", -1
	for _, cand := range b.names {
		d := levenshtein.ComputeDistance(name, cand)
		if d > suggestLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
