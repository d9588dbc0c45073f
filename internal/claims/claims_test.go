package claims

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"voxelcraft.ai/quartermaster/internal/world"
)

type registry interface {
	world.Claims
	Pending(ctx context.Context, owner string) ([]world.Reservation, error)
}

func registries(t *testing.T) map[string]registry {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]registry{
		"memory": NewMemory(),
		"redis":  NewRedis(rdb, "test:"),
	}
}

func TestClaimIsExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			res := world.BlockResource("OVERWORLD", world.Vec3{X: 1, Y: 2, Z: 3})
			ok, err := reg.Claim(ctx, res, "A1", time.Minute)
			if err != nil || !ok {
				t.Fatalf("first claim: ok=%v err=%v", ok, err)
			}
			if ok, _ := reg.Claim(ctx, res, "A2", time.Minute); ok {
				t.Fatalf("second owner must not get the claim")
			}
			if ok, _ := reg.Claim(ctx, res, "A1", time.Minute); !ok {
				t.Fatalf("owner should be able to extend its claim")
			}
			if err := reg.Release(ctx, res, "A2"); err != nil {
				t.Fatalf("foreign release: %v", err)
			}
			if ok, _ := reg.Claim(ctx, res, "A2", time.Minute); ok {
				t.Fatalf("foreign release must not drop the claim")
			}
			if err := reg.Release(ctx, res, "A1"); err != nil {
				t.Fatalf("release: %v", err)
			}
			if ok, _ := reg.Claim(ctx, res, "A2", time.Minute); !ok {
				t.Fatalf("claim after release should succeed")
			}
		})
	}
}

func TestMemoryClaimExpires(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()
	if ok, _ := m.Claim(ctx, "r", "A1", time.Second); !ok {
		t.Fatalf("claim failed")
	}
	now = now.Add(2 * time.Second)
	if ok, _ := m.Claim(ctx, "r", "A2", time.Second); !ok {
		t.Fatalf("expired claim should be free")
	}
}

func TestSpareReplacesPreviousAdvert(t *testing.T) {
	ctx := context.Background()
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			if err := reg.SetSpare(ctx, "A2", map[string]int{"COAL": 5, "STICK": 2}); err != nil {
				t.Fatalf("SetSpare: %v", err)
			}
			if err := reg.SetSpare(ctx, "A3", map[string]int{"COAL": 9}); err != nil {
				t.Fatalf("SetSpare: %v", err)
			}
			if err := reg.SetSpare(ctx, "A2", map[string]int{"COAL": 3}); err != nil {
				t.Fatalf("SetSpare: %v", err)
			}
			got, err := reg.Spare(ctx, "COAL")
			if err != nil {
				t.Fatalf("Spare: %v", err)
			}
			want := []world.PeerSpare{{AgentID: "A3", Count: 9}, {AgentID: "A2", Count: 3}}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("spare (-want +got):\n%s", diff)
			}
			sticks, _ := reg.Spare(ctx, "STICK")
			if len(sticks) != 0 {
				t.Fatalf("stale advert survived: %v", sticks)
			}
		})
	}
}

func TestReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			r, err := reg.Reserve(ctx, world.Reservation{Requester: "A1", Owner: "A2", Item: "COAL", Count: 3})
			if err != nil {
				t.Fatalf("Reserve: %v", err)
			}
			if r.ID == "" || r.Status != world.ReservationPending {
				t.Fatalf("reservation defaults not applied: %+v", r)
			}
			pending, err := reg.Pending(ctx, "A2")
			if err != nil || len(pending) != 1 || pending[0].ID != r.ID {
				t.Fatalf("Pending: %v %+v", err, pending)
			}

			r.Status = world.ReservationReady
			r.Pickup = world.Vec3{X: 4}
			if err := reg.UpdateReservation(ctx, r); err != nil {
				t.Fatalf("Update: %v", err)
			}
			got, err := reg.Reservation(ctx, r.ID)
			if err != nil {
				t.Fatalf("Reservation: %v", err)
			}
			if got.Status != world.ReservationReady || got.Pickup != r.Pickup {
				t.Fatalf("update lost: %+v", got)
			}
			if pending, _ := reg.Pending(ctx, "A2"); len(pending) != 0 {
				t.Fatalf("ready reservation still pending")
			}

			if err := reg.CancelReservation(ctx, r.ID); err != nil {
				t.Fatalf("Cancel: %v", err)
			}
			got, _ = reg.Reservation(ctx, r.ID)
			if got.Status != world.ReservationCancelled {
				t.Fatalf("status after cancel: %s", got.Status)
			}

			if _, err := reg.Reservation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing reservation: %v", err)
			}
			if err := reg.UpdateReservation(ctx, world.Reservation{ID: "missing"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("update missing: %v", err)
			}
		})
	}
}
