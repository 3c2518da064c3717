package flight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Group maps keys to cells so each key's value is computed at most once.
//
// Installation is an atomic insert-if-absent on the underlying map: when many
// callers race on a new key exactly one cell wins and the candidates built by
// the others are dropped before their factories run. Producers run outside the
// map lock, so a slow key never holds up another.
//
// Without a TTL or capacity a key keeps its cell for the life of the group.
// With either, expired or evicted cells are dropped and the next request
// starts a fresh cell.
// @group Groups
type Group[K comparable, V any] struct {
	entries  *ttlcache.Cache[K, *Cell[V]]
	observer Observer
	janitor  bool
	stop     sync.Once
	detach   func()
}

// NewGroup creates an empty group.
// @group Groups
//
// Example: one computation per key
//
//	g := flight.NewGroup[string, string]()
//	defer g.Close()
//	v, err := g.Do(context.Background(), "input", func() flight.Producer[string] {
//		return func(context.Context) (string, error) { return "ASdf", nil }
//	})
//	fmt.Println(v, err) // ASdf <nil>
func NewGroup[K comparable, V any](opts ...GroupOption) *Group[K, V] {
	cfg := GroupConfig{}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	cfg = cfg.withDefaults()

	ttlOpts := []ttlcache.Option[K, *Cell[V]]{
		ttlcache.WithDisableTouchOnHit[K, *Cell[V]](),
	}
	if cfg.TTL > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithTTL[K, *Cell[V]](cfg.TTL))
	}
	if cfg.Capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[K, *Cell[V]](cfg.Capacity))
	}

	g := &Group[K, V]{
		entries:  ttlcache.New[K, *Cell[V]](ttlOpts...),
		observer: cfg.Observer,
	}
	if g.observer != nil {
		g.detach = g.entries.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[K, *Cell[V]]) {
			if reason == ttlcache.EvictionReasonDeleted {
				return
			}
			g.observer.OnFlightOp(ctx, "evict", fmt.Sprint(item.Key()), false, nil, 0)
		})
	}
	if cfg.TTL > 0 {
		g.janitor = true
		go g.entries.Start()
	}
	return g
}

// GetOrCreate returns the cell for key, installing one built from factory when
// the key has none. It never runs a producer; factory is called at most once,
// by the first Get on the installed cell, and not at all for a losing
// candidate.
// @group Groups
func (g *Group[K, V]) GetOrCreate(key K, factory func() Producer[V]) *Cell[V] {
	item, _ := g.entries.GetOrSet(key, newLazyCell(factory))
	return item.Value()
}

// Do returns the value for key, computing it through factory's producer if the
// key's cell has none.
// @group Groups
func (g *Group[K, V]) Do(ctx context.Context, key K, factory func() Producer[V]) (V, error) {
	start := time.Now()
	v, ran, err := g.GetOrCreate(key, factory).get(ctx)
	g.observe(ctx, "do", key, !ran && err == nil, err, start)
	return v, err
}

// Peek returns key's value if its cell is ready, without computing.
// @group Groups
func (g *Group[K, V]) Peek(key K) (V, bool) {
	var zero V
	item := g.entries.Get(key)
	if item == nil {
		return zero, false
	}
	return item.Value().Peek()
}

// Forget drops key's cell. Callers already holding it keep their result; the
// next request for key starts over.
// @group Groups
func (g *Group[K, V]) Forget(key K) {
	g.entries.Delete(key)
}

// forgetCell drops key only while it still maps to c.
func (g *Group[K, V]) forgetCell(key K, c *Cell[V]) {
	item := g.entries.Get(key)
	if item != nil && item.Value() == c {
		g.entries.Delete(key)
	}
}

// Len reports the number of keys holding a cell.
// @group Groups
func (g *Group[K, V]) Len() int {
	return g.entries.Len()
}

// Flush drops every cell.
// @group Groups
func (g *Group[K, V]) Flush() {
	g.entries.DeleteAll()
}

// Close stops the expiry loop started for groups with a TTL. It is safe to
// call more than once.
// @group Groups
func (g *Group[K, V]) Close() {
	g.stop.Do(func() {
		if g.detach != nil {
			g.detach()
		}
		if g.janitor {
			g.entries.Stop()
		}
	})
}

func (g *Group[K, V]) observe(ctx context.Context, op string, key K, hit bool, err error, start time.Time) {
	if g.observer == nil {
		return
	}
	g.observer.OnFlightOp(ctx, op, fmt.Sprint(key), hit, err, time.Since(start))
}
