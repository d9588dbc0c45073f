package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"voxelcraft.ai/quartermaster/internal/world"
)

// reservationTTL bounds how long a reservation record lives in Redis.
const reservationTTL = 24 * time.Hour

// releaseScript deletes a claim only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis shares the registry between agents on different hosts.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "qm:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

// Dial connects to url ("redis://host:port/db") and pings it.
func Dial(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedis(rdb, prefix), nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) claimKey(resource string) string   { return r.prefix + "claim:" + resource }
func (r *Redis) spareAgentKey(agent string) string { return r.prefix + "spare:agent:" + agent }
func (r *Redis) spareItemKey(item string) string   { return r.prefix + "spare:item:" + item }
func (r *Redis) resKey(id string) string           { return r.prefix + "res:" + id }
func (r *Redis) ownerKey(owner string) string      { return r.prefix + "res:owner:" + owner }

func (r *Redis) Claim(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error) {
	key := r.claimKey(resource)
	ok, err := r.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", resource, err)
	}
	if ok {
		return true, nil
	}
	cur, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls.
		return r.rdb.SetNX(ctx, key, owner, ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", resource, err)
	}
	if cur != owner {
		return false, nil
	}
	if err := r.rdb.PExpire(ctx, key, ttl).Err(); err != nil {
		return false, fmt.Errorf("extend claim %s: %w", resource, err)
	}
	return true, nil
}

func (r *Redis) Release(ctx context.Context, resource, owner string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{r.claimKey(resource)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", resource, err)
	}
	return nil
}

// SetSpare replaces agentID's advertised stock. Each item keeps a hash of
// agent -> count so Spare is a single HGETALL.
func (r *Redis) SetSpare(ctx context.Context, agentID string, stock map[string]int) error {
	old, err := r.rdb.HGetAll(ctx, r.spareAgentKey(agentID)).Result()
	if err != nil {
		return fmt.Errorf("read spare %s: %w", agentID, err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for item := range old {
			p.HDel(ctx, r.spareItemKey(item), agentID)
		}
		p.Del(ctx, r.spareAgentKey(agentID))
		for item, n := range stock {
			if n <= 0 {
				continue
			}
			p.HSet(ctx, r.spareItemKey(item), agentID, n)
			p.HSet(ctx, r.spareAgentKey(agentID), item, n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write spare %s: %w", agentID, err)
	}
	return nil
}

func (r *Redis) Spare(ctx context.Context, item string) ([]world.PeerSpare, error) {
	m, err := r.rdb.HGetAll(ctx, r.spareItemKey(item)).Result()
	if err != nil {
		return nil, fmt.Errorf("read spare %s: %w", item, err)
	}
	out := make([]world.PeerSpare, 0, len(m))
	for agent, v := range m {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, world.PeerSpare{AgentID: agent, Count: n})
	}
	sortSpare(out)
	return out, nil
}

func (r *Redis) put(ctx context.Context, res world.Reservation, mode string) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	args := redis.SetArgs{TTL: reservationTTL, Mode: mode}
	if mode == "XX" {
		args = redis.SetArgs{KeepTTL: true, Mode: mode}
	}
	err = r.rdb.SetArgs(ctx, r.resKey(res.ID), b, args).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return err
}

func (r *Redis) Reserve(ctx context.Context, res world.Reservation) (world.Reservation, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.Status == "" {
		res.Status = world.ReservationPending
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if err := r.put(ctx, res, ""); err != nil {
		return world.Reservation{}, fmt.Errorf("reserve: %w", err)
	}
	if err := r.rdb.SAdd(ctx, r.ownerKey(res.Owner), res.ID).Err(); err != nil {
		return world.Reservation{}, fmt.Errorf("index reservation: %w", err)
	}
	return res, nil
}

func (r *Redis) Reservation(ctx context.Context, id string) (world.Reservation, error) {
	b, err := r.rdb.Get(ctx, r.resKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return world.Reservation{}, ErrNotFound
	}
	if err != nil {
		return world.Reservation{}, fmt.Errorf("read reservation %s: %w", id, err)
	}
	var res world.Reservation
	if err := json.Unmarshal(b, &res); err != nil {
		return world.Reservation{}, fmt.Errorf("decode reservation %s: %w", id, err)
	}
	return res, nil
}

func (r *Redis) UpdateReservation(ctx context.Context, res world.Reservation) error {
	return r.put(ctx, res, "XX")
}

func (r *Redis) CancelReservation(ctx context.Context, id string) error {
	res, err := r.Reservation(ctx, id)
	if err != nil {
		return err
	}
	res.Status = world.ReservationCancelled
	return r.put(ctx, res, "XX")
}

// Pending lists reservations waiting on owner, oldest first. Expired ids are
// pruned from the owner index.
func (r *Redis) Pending(ctx context.Context, owner string) ([]world.Reservation, error) {
	ids, err := r.rdb.SMembers(ctx, r.ownerKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	var out []world.Reservation
	for _, id := range ids {
		res, err := r.Reservation(ctx, id)
		if errors.Is(err, ErrNotFound) {
			r.rdb.SRem(ctx, r.ownerKey(owner), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if res.Status == world.ReservationPending {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
