package client

import (
	"context"
	"sort"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/protocol"
	"voxelcraft.ai/quartermaster/internal/world"
)

const air = "AIR"

var (
	_ world.World      = (*Client)(nil)
	_ world.Navigator  = (*Client)(nil)
	_ world.Interactor = (*Client)(nil)
	_ world.Chat       = (*Client)(nil)
)

func (c *Client) Self(ctx context.Context) (world.Self, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dim := c.worldID
	if dim == "" {
		dim = "OVERWORLD"
	}
	return world.Self{ID: c.agentID, Pos: world.FromArray(c.pos), Dimension: dim}, ctx.Err()
}

func (c *Client) Inventory(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.inv))
	for k, v := range c.inv {
		if v > 0 {
			out[k] = v
		}
	}
	return out, ctx.Err()
}

func (c *Client) Bundles(ctx context.Context) ([]world.Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]world.Bundle, len(c.bundles))
	for i, b := range c.bundles {
		cp := make(map[string]int, len(b.Contents))
		for k, v := range b.Contents {
			cp[k] = v
		}
		b.Contents = cp
		out[i] = b
	}
	return out, ctx.Err()
}

func (c *Client) blockName(id uint16) string {
	if int(id) < len(c.palette) {
		return c.palette[id]
	}
	return ""
}

// FindBlocks only sees the observed cube around the agent.
func (c *Client) FindBlocks(ctx context.Context, name string, radius int) ([]world.Vec3, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	self := world.FromArray(c.pos)
	var out []world.Vec3
	c.grid.Each(func(p [3]int, id uint16) {
		if c.blockName(id) != name {
			return
		}
		if v := world.FromArray(p); self.Dist(v) <= float64(radius) {
			out = append(out, v)
		}
	})
	world.SortByDistance(self, out)
	return out, ctx.Err()
}

// BlockAt reads "" for positions outside the observed cube.
func (c *Client) BlockAt(ctx context.Context, pos world.Vec3) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.grid.At(pos.ToArray())
	if !ok {
		return "", ctx.Err()
	}
	return c.blockName(id), ctx.Err()
}

func (c *Client) FindEntities(ctx context.Context, typ string, radius int) ([]world.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	self := world.FromArray(c.pos)
	var out []world.Entity
	for _, e := range c.entities {
		if e.Type != typ {
			continue
		}
		ent := world.Entity{ID: e.ID, Type: e.Type, Pos: world.FromArray(e.Pos), Tags: append([]string(nil), e.Tags...)}
		if self.Dist(ent.Pos) <= float64(radius) {
			out = append(out, ent)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := self.Dist(out[i].Pos), self.Dist(out[j].Pos)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out, ctx.Err()
}

func (c *Client) MoveTo(ctx context.Context, pos world.Vec3, proximity float64) error {
	return c.task(ctx, "move", "", protocol.TaskReq{Type: protocol.TaskMoveTo, Target: pos.ToArray(), Tolerance: proximity})
}

func (c *Client) Equip(ctx context.Context, item string) error {
	return c.instant(ctx, "equip", item, protocol.InstantReq{Type: protocol.InstantEquip, ItemID: item})
}

func (c *Client) Dig(ctx context.Context, pos world.Vec3) error {
	return c.task(ctx, "dig", "", protocol.TaskReq{Type: protocol.TaskMine, BlockPos: pos.ToArray()})
}

// Place puts item on the first free side of the agent.
func (c *Client) Place(ctx context.Context, item string) (world.Vec3, error) {
	c.mu.Lock()
	self := world.FromArray(c.pos)
	var spot world.Vec3
	found := false
	for _, n := range self.Neighbors6() {
		if n.Y != self.Y {
			continue
		}
		if id, ok := c.grid.At(n.ToArray()); ok && c.blockName(id) == air {
			spot, found = n, true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return world.Vec3{}, failure.Environmentf("place", item, "no free space next to %v", self)
	}
	err := c.task(ctx, "place", item, protocol.TaskReq{Type: protocol.TaskPlace, ItemID: item, BlockPos: spot.ToArray()})
	return spot, err
}

func (c *Client) Unbundle(ctx context.Context, bundleID, item string, n int) error {
	return c.instant(ctx, "unbundle", item, protocol.InstantReq{Type: protocol.InstantUnbundle, TargetID: bundleID, ItemID: item, Count: n})
}

func (c *Client) Craft(ctx context.Context, recipeID string, times int, surface *world.Vec3) error {
	t := protocol.TaskReq{Type: protocol.TaskCraft, RecipeID: recipeID, Count: times}
	if surface != nil {
		t.BlockPos = surface.ToArray()
	}
	return c.task(ctx, "craft", recipeID, t)
}

func (c *Client) Cook(ctx context.Context, recipeID string, times int, source world.Vec3, fuel string) error {
	return c.task(ctx, "cook", recipeID, protocol.TaskReq{
		Type: protocol.TaskSmelt, RecipeID: recipeID, Count: times, BlockPos: source.ToArray(), Fuel: fuel,
	})
}

func (c *Client) Trade(ctx context.Context, partnerID string, offer world.TradeOffer) error {
	var price []protocol.ItemStack
	for _, s := range offer.Price() {
		price = append(price, protocol.ItemStack{Item: s.Item, Count: s.Count})
	}
	return c.instant(ctx, "trade", offer.Output.Item, protocol.InstantReq{
		Type:     protocol.InstantTrade,
		TargetID: partnerID,
		Offer:    protocol.Stacks(price...),
		Request:  protocol.Stacks(protocol.ItemStack{Item: offer.Output.Item, Count: offer.Output.Count}),
	})
}

func (c *Client) Interact(ctx context.Context, entityID, tool string) error {
	return c.instant(ctx, "interact", entityID, protocol.InstantReq{Type: protocol.InstantInteract, TargetID: entityID, ItemID: tool})
}

func (c *Client) Collect(ctx context.Context, pos world.Vec3, item string, n int) error {
	return c.task(ctx, "collect", item, protocol.TaskReq{Type: protocol.TaskGather, BlockPos: pos.ToArray(), ItemID: item, Count: n})
}

func (c *Client) Say(ctx context.Context, text string) error {
	return c.instant(ctx, "say", "", protocol.InstantReq{Type: protocol.InstantSay, Channel: "LOCAL", Text: text})
}

func (c *Client) Whisper(ctx context.Context, to, text string) error {
	return c.instant(ctx, "whisper", "", protocol.InstantReq{Type: protocol.InstantWhisper, To: to, Text: text})
}

func (c *Client) Give(ctx context.Context, to, item string, n int) error {
	return c.instant(ctx, "give", item, protocol.InstantReq{Type: protocol.InstantGive, To: to, ItemID: item, Count: n})
}

func (c *Client) Gifts() <-chan world.Gift { return c.gifts }
