package client

import (
	"context"
	"sync"

	"voxelcraft.ai/quartermaster/internal/failure"
	"voxelcraft.ai/quartermaster/internal/protocol"
	"voxelcraft.ai/quartermaster/internal/world"
)

// containerHandle reads the stock the server sent with the CONTAINER event
// and withdraws with TRANSFER into the agent's own inventory.
type containerHandle struct {
	c  *Client
	id string

	mu     sync.Mutex
	closed bool
}

func (c *Client) OpenContainer(ctx context.Context, rec world.ContainerRecord) (world.ContainerHandle, error) {
	c.mu.Lock()
	prev := c.open
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	if err := c.task(ctx, "open", rec.ID, protocol.TaskReq{Type: protocol.TaskOpen, TargetID: rec.ID}); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.containers[rec.ID]; !ok {
		return nil, failure.Environmentf("open", rec.ID, "server sent no contents")
	}
	h := &containerHandle{c: c, id: rec.ID}
	c.open = h
	return h, nil
}

func (h *containerHandle) ID() string { return h.id }

func (h *containerHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *containerHandle) Stock(ctx context.Context) (map[string]int, error) {
	if h.isClosed() {
		return nil, failure.Environmentf("stock", h.id, "container closed")
	}
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	out := map[string]int{}
	for k, v := range h.c.containers[h.id] {
		out[k] = v
	}
	return out, ctx.Err()
}

// Withdraw reports what actually arrived in the inventory, which may be less
// than n when the container ran short.
func (h *containerHandle) Withdraw(ctx context.Context, item string, n int) (int, error) {
	if h.isClosed() {
		return 0, failure.Environmentf("withdraw", item, "container closed")
	}
	h.c.mu.Lock()
	before := h.c.inv[item]
	h.c.mu.Unlock()
	err := h.c.task(ctx, "withdraw", item, protocol.TaskReq{
		Type: protocol.TaskTransfer, Src: h.id, Dst: protocol.SelfContainer, ItemID: item, Count: n,
	})
	if err != nil {
		return 0, err
	}
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	got := min(max(h.c.inv[item]-before, 0), n)
	if st := h.c.containers[h.id]; st != nil {
		st[item] = max(st[item]-got, 0)
	}
	return got, nil
}

func (h *containerHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.c.mu.Lock()
	if h.c.open == h {
		h.c.open = nil
	}
	h.c.mu.Unlock()
	return nil
}
