package memworld

import (
	"context"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/world"
)

func (w *World) Equip(ctx context.Context, item string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inv[item] <= 0 {
		return errMissing("equip", item, 0, 1)
	}
	return ctx.Err()
}

// Dig removes the block and adds it to the inventory. A cobblestone block
// touching water and lava refills at once.
func (w *World) Dig(ctx context.Context, pos world.Vec3) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailDigs > 0 {
		w.FailDigs--
		return failure.Environmentf("dig", "", "block did not break")
	}
	b, ok := w.blocks[pos]
	if !ok {
		return failure.Environmentf("dig", "", "nothing to dig at %d,%d,%d", pos.X, pos.Y, pos.Z)
	}
	if w.self.Pos.Dist(pos) > reach {
		return failure.Environmentf("dig", b, "too far")
	}
	w.inv[b]++
	if !w.generator(pos) {
		delete(w.blocks, pos)
	}
	return nil
}

func (w *World) generator(pos world.Vec3) bool {
	if w.blocks[pos] != "COBBLESTONE" {
		return false
	}
	var water, lava bool
	for _, n := range pos.Neighbors6() {
		switch w.blocks[n] {
		case "WATER":
			water = true
		case "LAVA":
			lava = true
		}
	}
	return water && lava
}

func (w *World) Place(ctx context.Context, item string) (world.Vec3, error) {
	if err := ctx.Err(); err != nil {
		return world.Vec3{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inv[item] <= 0 {
		return world.Vec3{}, errMissing("place", item, 0, 1)
	}
	block := item
	if def, ok := w.kb.Item(item); ok && def.PlaceAs != "" {
		block = def.PlaceAs
	}
	for _, n := range w.self.Pos.Neighbors6() {
		if _, taken := w.blocks[n]; taken || n == w.self.Pos {
			continue
		}
		w.blocks[n] = block
		w.inv[item]--
		return n, nil
	}
	return world.Vec3{}, failure.Environmentf("place", item, "no free space")
}

type handle struct {
	w  *World
	id string
}

func (w *World) OpenContainer(ctx context.Context, rec world.ContainerRecord) (world.ContainerHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open != "" {
		return nil, failure.GameStatef("open", rec.ID, "container %s still open", w.open)
	}
	c := w.live[rec.ID]
	if c == nil {
		return nil, failure.Environmentf("open", rec.ID, "container is gone")
	}
	if w.self.Pos.Dist(c.Pos) > reach {
		return nil, failure.Environmentf("open", rec.ID, "too far")
	}
	w.open = rec.ID
	return &handle{w: w, id: rec.ID}, nil
}

func (h *handle) ID() string { return h.id }

func (h *handle) Stock(ctx context.Context) (map[string]int, error) {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	return copyStock(h.w.live[h.id].Stock), ctx.Err()
}

func (h *handle) Withdraw(ctx context.Context, item string, n int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.w.open != h.id {
		return 0, failure.GameStatef("withdraw", item, "container %s is closed", h.id)
	}
	c := h.w.live[h.id]
	got := min(n, c.Stock[item])
	c.Stock[item] -= got
	h.w.inv[item] += got
	return got, nil
}

func (h *handle) Close() error {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.w.open == h.id {
		h.w.open = ""
	}
	return nil
}

func (w *World) Unbundle(ctx context.Context, bundleID, item string, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.bundles {
		b := &w.bundles[i]
		if b.ID != bundleID {
			continue
		}
		if b.Contents[item] < n {
			return failure.Environmentf("unbundle", item, "bundle %s holds %d", bundleID, b.Contents[item])
		}
		b.Contents[item] -= n
		w.inv[item] += n
		return ctx.Err()
	}
	return failure.Environmentf("unbundle", item, "bundle %s is gone", bundleID)
}

// take removes count units of ref (a name or #TAG) from the inventory.
func (w *World) take(ref string, count int) bool {
	names := w.kb.Members(ref)
	have := 0
	for _, n := range names {
		have += w.inv[n]
	}
	if have < count {
		return false
	}
	for _, n := range names {
		d := min(count, w.inv[n])
		w.inv[n] -= d
		count -= d
	}
	return true
}

func (w *World) held(ref string) int {
	n := 0
	for _, m := range w.kb.Members(ref) {
		n += w.inv[m]
	}
	return n
}

func (w *World) runRecipe(op string, r knowledge.RecipeDef, times int) error {
	for _, in := range r.Inputs {
		if have := w.held(in.Item); have < in.Count*times {
			return errMissing(op, in.Item, have, in.Count*times)
		}
	}
	for _, in := range r.Inputs {
		w.take(in.Item, in.Count*times)
	}
	for _, o := range r.Outputs {
		w.inv[o.Item] += o.Count * times
	}
	w.Crafted = append(w.Crafted, r.RecipeID)
	return nil
}

func (w *World) Craft(ctx context.Context, recipeID string, times int, surface *world.Vec3) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.kb.Recipe(recipeID)
	if !ok || r.Kind != knowledge.KindCraft {
		return failure.Knowledgef("craft", recipeID, "unknown recipe")
	}
	if r.NeedsStation() {
		if surface == nil || w.blocks[*surface] != r.Station {
			return failure.Environmentf("craft", r.Station, "work surface missing")
		}
		if w.self.Pos.Dist(*surface) > reach {
			return failure.Environmentf("craft", r.Station, "too far from work surface")
		}
	}
	return w.runRecipe("craft", r, times)
}

func (w *World) Cook(ctx context.Context, recipeID string, times int, source world.Vec3, fuel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.kb.Recipe(recipeID)
	if !ok || r.Kind != knowledge.KindCook {
		return failure.Knowledgef("cook", recipeID, "unknown recipe")
	}
	block := w.blocks[source]
	hs, ok := w.kb.HeatSource(block)
	allowed := false
	for _, b := range r.HeatSources {
		allowed = allowed || b == block
	}
	if !ok || !allowed {
		return failure.Environmentf("cook", block, "no usable heat source at %d,%d,%d", source.X, source.Y, source.Z)
	}
	if hs.NeedsFuel {
		units := 0
		for _, f := range w.kb.Fuels() {
			if f.Item == fuel {
				units = f.Units(times)
			}
		}
		if units == 0 {
			return failure.GameStatef("cook", fuel, "not a fuel")
		}
		if w.inv[fuel] < units {
			return errMissing("cook", fuel, w.inv[fuel], units)
		}
		if err := w.runRecipe("cook", r, times); err != nil {
			return err
		}
		w.inv[fuel] -= units
		return nil
	}
	return w.runRecipe("cook", r, times)
}

func (w *World) Trade(ctx context.Context, partnerID string, offer world.TradeOffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.traders {
		t := &w.traders[i]
		if t.ID != partnerID {
			continue
		}
		for j := range t.Offers {
			o := &t.Offers[j]
			if o.Input1 != offer.Input1 || o.Input2 != offer.Input2 || o.Output != offer.Output {
				continue
			}
			if o.Remaining() <= 0 {
				return failure.GameStatef("trade", o.Output.Item, "offer is used up")
			}
			for _, p := range o.Price() {
				if w.inv[p.Item] < p.Count {
					return errMissing("trade", p.Item, w.inv[p.Item], p.Count)
				}
			}
			for _, p := range o.Price() {
				w.inv[p.Item] -= p.Count
			}
			w.inv[o.Output.Item] += o.Output.Count
			o.Uses++
			return nil
		}
		return failure.Environmentf("trade", offer.Output.Item, "%s no longer offers it", t.Name)
	}
	return failure.Environmentf("trade", offer.Output.Item, "partner %s is gone", partnerID)
}

// Interact uses tool on a creature. The creature gets the source's exclude
// tag so it cannot be harvested again.
func (w *World) Interact(ctx context.Context, entityID, tool string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var e *world.Entity
	for i := range w.entities {
		if w.entities[i].ID == entityID {
			e = &w.entities[i]
		}
	}
	if e == nil {
		return failure.Environmentf("interact", entityID, "creature is gone")
	}
	if w.inv[tool] <= 0 {
		return errMissing("interact", tool, 0, 1)
	}
	for _, ms := range w.kb.MobSourcesOf(e.Type) {
		if ms.Tool != tool {
			continue
		}
		if ms.ExcludeTag != "" && e.HasTag(ms.ExcludeTag) {
			return failure.GameStatef("interact", ms.Item, "%s %s cannot yield now", e.Type, e.ID)
		}
		w.inv[ms.Item] += ms.Yield
		if ms.Consumed {
			w.inv[tool]--
		}
		if ms.ExcludeTag != "" {
			e.Tags = append(e.Tags, ms.ExcludeTag)
		}
		return nil
	}
	return failure.GameStatef("interact", tool, "%s does nothing to %s", tool, e.Type)
}

func (w *World) Collect(ctx context.Context, pos world.Vec3, item string, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drops[pos][item] < n {
		return failure.Environmentf("collect", item, "only %d left at %d,%d,%d", w.drops[pos][item], pos.X, pos.Y, pos.Z)
	}
	w.drops[pos][item] -= n
	w.inv[item] += n
	return ctx.Err()
}
