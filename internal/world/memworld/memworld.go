// Package memworld is an in-memory voxel world that implements every world
// collaborator. The CLI plans against it offline and the planner, executor
// and service tests use it as their world.
package memworld

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/knowledge"
	"voxelcraft.ai/quartermaster/internal/world"
)

const reach = 4.5

type Block struct {
	Name string     `yaml:"name"`
	Pos  world.Vec3 `yaml:"pos"`
}

// Snapshot is the YAML form of a world.
type Snapshot struct {
	Self       world.Self              `yaml:"self"`
	Inventory  map[string]int          `yaml:"inventory"`
	Bundles    []world.Bundle          `yaml:"bundles"`
	Blocks     []Block                 `yaml:"blocks"`
	Entities   []world.Entity          `yaml:"entities"`
	Containers []world.ContainerRecord `yaml:"containers"`
	Traders    []world.TradePartner    `yaml:"traders"`
	// Spare is stock cooperating agents advertise, keyed by agent id.
	Spare map[string]map[string]int `yaml:"spare"`
}

func LoadSnapshot(path string) (Snapshot, error) {
	var s Snapshot
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

type World struct {
	mu sync.Mutex
	kb *knowledge.Base

	self     world.Self
	inv      map[string]int
	bundles  []world.Bundle
	blocks   map[world.Vec3]string
	entities []world.Entity
	// live is the real container stock; known is what the agent has recorded.
	live    map[string]*world.ContainerRecord
	known   map[string]world.ContainerRecord
	traders []world.TradePartner
	drops   map[world.Vec3]map[string]int
	open    string

	gifts chan world.Gift

	// OnSay runs after every Say, outside the world lock.
	OnSay func(text string)
	// FailDigs makes the next n digs fail.
	FailDigs int

	Said     []string
	Whispers []string
	Given    []Transfer
	Crafted  []string
}

func New(s Snapshot, kb *knowledge.Base) *World {
	w := &World{
		kb:     kb,
		self:   s.Self,
		inv:    map[string]int{},
		blocks: map[world.Vec3]string{},
		live:   map[string]*world.ContainerRecord{},
		known:  map[string]world.ContainerRecord{},
		drops:  map[world.Vec3]map[string]int{},
		gifts:  make(chan world.Gift, 64),
	}
	if w.self.Dimension == "" {
		w.self.Dimension = "OVERWORLD"
	}
	for k, v := range s.Inventory {
		w.inv[k] = v
	}
	for _, b := range s.Bundles {
		b.Contents = copyStock(b.Contents)
		w.bundles = append(w.bundles, b)
	}
	for _, b := range s.Blocks {
		w.blocks[b.Pos] = b.Name
	}
	w.entities = append(w.entities, s.Entities...)
	for _, c := range s.Containers {
		if c.Dimension == "" {
			c.Dimension = w.self.Dimension
		}
		if c.ID == "" {
			c.ID = world.ContainerID(c.Type, c.Pos)
		}
		live := c
		live.Stock = copyStock(c.Stock)
		w.live[c.ID] = &live
		c.Stock = copyStock(c.Stock)
		w.known[c.ID] = c
	}
	for _, t := range s.Traders {
		if t.Dimension == "" {
			t.Dimension = w.self.Dimension
		}
		t.Offers = append([]world.TradeOffer(nil), t.Offers...)
		w.traders = append(w.traders, t)
	}
	return w
}

func copyStock(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Env wires w into every collaborator slot except Claims.
func (w *World) Env(claims world.Claims) world.Env {
	return world.Env{
		World: w, Navigator: w, Interactor: w, Chat: w,
		Containers: w, Traders: w, Claims: claims,
	}
}

// ---- World ----

func (w *World) Self(ctx context.Context) (world.Self, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.self, ctx.Err()
}

func (w *World) Inventory(ctx context.Context) (map[string]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := map[string]int{}
	for k, v := range w.inv {
		if v > 0 {
			out[k] = v
		}
	}
	return out, ctx.Err()
}

func (w *World) Bundles(ctx context.Context) ([]world.Bundle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]world.Bundle, len(w.bundles))
	for i, b := range w.bundles {
		b.Contents = copyStock(b.Contents)
		out[i] = b
	}
	return out, ctx.Err()
}

func (w *World) FindBlocks(ctx context.Context, name string, radius int) ([]world.Vec3, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []world.Vec3
	for p, b := range w.blocks {
		if b == name && w.self.Pos.Dist(p) <= float64(radius) {
			out = append(out, p)
		}
	}
	world.SortByDistance(w.self.Pos, out)
	return out, ctx.Err()
}

func (w *World) BlockAt(ctx context.Context, pos world.Vec3) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.blocks[pos]; ok {
		return b, ctx.Err()
	}
	return "AIR", ctx.Err()
}

func (w *World) FindEntities(ctx context.Context, typ string, radius int) ([]world.Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []world.Entity
	for _, e := range w.entities {
		if e.Type == typ && w.self.Pos.Dist(e.Pos) <= float64(radius) {
			e.Tags = append([]string(nil), e.Tags...)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := w.self.Pos.Dist(out[i].Pos), w.self.Pos.Dist(out[j].Pos)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out, ctx.Err()
}

// ---- Navigator ----

// MoveTo teleports next to pos.
func (w *World) MoveTo(ctx context.Context, pos world.Vec3, _ float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.self.Pos = pos
	return nil
}

// ---- ContainerRecords / TradePartners ----

func (w *World) Containers(ctx context.Context) ([]world.ContainerRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]world.ContainerRecord, 0, len(w.known))
	for _, c := range w.known {
		c.Stock = copyStock(c.Stock)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, ctx.Err()
}

func (w *World) UpdateContainer(ctx context.Context, rec world.ContainerRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec.Stock = copyStock(rec.Stock)
	w.known[rec.ID] = rec
	return ctx.Err()
}

func (w *World) Partners(ctx context.Context) ([]world.TradePartner, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]world.TradePartner, len(w.traders))
	for i, t := range w.traders {
		t.Offers = append([]world.TradeOffer(nil), t.Offers...)
		out[i] = t
	}
	return out, ctx.Err()
}

// ---- test and scenario helpers ----

// Count returns the held amount of item.
func (w *World) Count(item string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inv[item]
}

// SetCount overwrites the held amount of item.
func (w *World) SetCount(item string, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inv[item] = n
}

// SetLiveStock changes a container's real stock without touching records.
func (w *World) SetLiveStock(id, item string, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c := w.live[id]; c != nil {
		c.Stock[item] = n
	}
}

func (w *World) SetBlock(pos world.Vec3, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if name == "" || name == "AIR" {
		delete(w.blocks, pos)
		return
	}
	w.blocks[pos] = name
}

func (w *World) RemoveEntity(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entities {
		if e.ID == id {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			return
		}
	}
}

// Drop leaves items at pos for the agent to collect.
func (w *World) Drop(pos world.Vec3, item string, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drops[pos] == nil {
		w.drops[pos] = map[string]int{}
	}
	w.drops[pos][item] += n
}

// Gift hands n of item to the agent from another player and announces it.
func (w *World) Gift(from, item string, n int) {
	w.mu.Lock()
	w.inv[item] += n
	w.mu.Unlock()
	w.gifts <- world.Gift{From: from, Item: item, Count: n}
}

func (w *World) OpenContainerID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func errMissing(op, item string, have, need int) error {
	return failure.GameStatef(op, item, "need %d, have %d", need, have)
}
