// Package memory keeps the per-item success records that bias planning
// toward strategies and items that worked before. Records never decay.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Record struct {
	LastSuccess time.Time `json:"last_success"`
	Count       int       `json:"count"`
}

// Store persists records across restarts.
type Store interface {
	LoadSuccess(ctx context.Context) (map[string]Record, error)
	SaveSuccess(ctx context.Context, item string, rec Record) error
}

type Cache struct {
	mu    sync.Mutex
	recs  map[string]Record
	store Store
	log   *zap.Logger

	now func() time.Time
}

// New returns an empty cache. store may be nil.
func New(store Store, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{recs: map[string]Record{}, store: store, log: log, now: time.Now}
}

// Load replaces the cache contents with the store's records.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	recs, err := c.store.LoadSuccess(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = make(map[string]Record, len(recs))
	for k, v := range recs {
		c.recs[k] = v
	}
	return nil
}

func (c *Cache) Get(item string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.recs[item]
	return r, ok
}

// Weight is the success count of item, 0 when it never succeeded.
func (c *Cache) Weight(item string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recs[item].Count
}

// Succeeded bumps item's record. Store failures are logged, not returned:
// losing a record only costs search order.
func (c *Cache) Succeeded(ctx context.Context, item string) {
	c.mu.Lock()
	r := c.recs[item]
	r.Count++
	r.LastSuccess = c.now()
	c.recs[item] = r
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.SaveSuccess(ctx, item, r); err != nil {
		c.log.Warn("save success record", zap.String("item", item), zap.Error(err))
	}
}

// Snapshot copies every record.
func (c *Cache) Snapshot() map[string]Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Record, len(c.recs))
	for k, v := range c.recs {
		out[k] = v
	}
	return out
}

// Weigher is anything that can score an item name.
type Weigher interface {
	Weight(item string) int
}

// Rank sorts xs by descending score, keeping the original order among equal
// scores so previously successful candidates come first.
func Rank[T any](xs []T, score func(T) int) {
	sort.SliceStable(xs, func(i, j int) bool { return score(xs[i]) > score(xs[j]) })
}

// RankNames returns a copy of names ordered by w.
func RankNames(w Weigher, names []string) []string {
	out := append([]string(nil), names...)
	if w == nil {
		return out
	}
	Rank(out, w.Weight)
	return out
}
