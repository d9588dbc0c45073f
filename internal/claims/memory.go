package claims

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxelcraft.ai/quartermaster/internal/world"
)

type claim struct {
	owner   string
	expires time.Time
}

// Memory is a process-local registry for single-host setups and tests.
type Memory struct {
	mu     sync.Mutex
	claims map[string]claim
	spare  map[string]map[string]int
	res    map[string]world.Reservation

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		claims: map[string]claim{},
		spare:  map[string]map[string]int{},
		res:    map[string]world.Reservation{},
		now:    time.Now,
	}
}

// Claim takes resource for owner until ttl passes. Re-claiming an owned
// resource extends it.
func (m *Memory) Claim(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if c, ok := m.claims[resource]; ok && c.owner != owner && now.Before(c.expires) {
		return false, ctx.Err()
	}
	m.claims[resource] = claim{owner: owner, expires: now.Add(ttl)}
	return true, ctx.Err()
}

func (m *Memory) Release(ctx context.Context, resource, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[resource]; ok && c.owner == owner {
		delete(m.claims, resource)
	}
	return ctx.Err()
}

func (m *Memory) SetSpare(ctx context.Context, agentID string, stock map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := map[string]int{}
	for k, v := range stock {
		if v > 0 {
			cp[k] = v
		}
	}
	m.spare[agentID] = cp
	return ctx.Err()
}

func (m *Memory) Spare(ctx context.Context, item string) ([]world.PeerSpare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []world.PeerSpare
	for agent, stock := range m.spare {
		if n := stock[item]; n > 0 {
			out = append(out, world.PeerSpare{AgentID: agent, Count: n})
		}
	}
	sortSpare(out)
	return out, ctx.Err()
}

func (m *Memory) Reserve(ctx context.Context, r world.Reservation) (world.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = world.ReservationPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	m.res[r.ID] = r
	return r, ctx.Err()
}

func (m *Memory) Reservation(ctx context.Context, id string) (world.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.res[id]
	if !ok {
		return world.Reservation{}, ErrNotFound
	}
	return r, ctx.Err()
}

func (m *Memory) UpdateReservation(ctx context.Context, r world.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.res[r.ID]; !ok {
		return ErrNotFound
	}
	m.res[r.ID] = r
	return ctx.Err()
}

func (m *Memory) CancelReservation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.res[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = world.ReservationCancelled
	m.res[id] = r
	return ctx.Err()
}

// Pending lists reservations waiting on owner, oldest first.
func (m *Memory) Pending(ctx context.Context, owner string) ([]world.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []world.Reservation
	for _, r := range m.res {
		if r.Owner == owner && r.Status == world.ReservationPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, ctx.Err()
}
