// Package cache provides a short-TTL response cache for remote API calls.
// Entries are keyed by string and hold whatever the fetcher returned,
// including nil. Stale entries are evicted lazily when they are read.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/h0rv/ghpsync/internal/clock"
)

// DefaultTTL is how long a cached response stays fresh.
const DefaultTTL = 5 * time.Minute

// Fetcher produces the value to cache for a key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	value    any
	storedAt time.Time
}

// Cache memoizes fetch results per key for a fixed TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Scheduler

	coalesce bool
	flight   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source used for freshness checks.
func WithClock(s clock.Scheduler) Option {
	return func(c *Cache) { c.clock = s }
}

// WithCoalescing makes concurrent misses for the same key share one fetcher
// call. Without it, each concurrent miss runs its own fetcher and the last
// one to finish wins.
func WithCoalescing() Option {
	return func(c *Cache) { c.coalesce = true }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// FetchWithCache returns the fresh cached value for key, or calls fetcher,
// stores its result and returns it. Fetch errors are returned as-is and
// nothing is stored.
func (c *Cache) FetchWithCache(ctx context.Context, key string, fetcher Fetcher) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	if !c.coalesce {
		return c.fetchAndStore(ctx, key, fetcher)
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// A caller that finished while we waited for the flight slot may
		// already have stored a fresh value.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		return c.fetchAndStore(ctx, key, fetcher)
	})
	return v, err
}

func (c *Cache) fetchAndStore(ctx context.Context, key string, fetcher Fetcher) (any, error) {
	v, err := fetcher(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, v)
	return v, nil
}

// Set stores value under key with the current time.
func (c *Cache) Set(key string, value any) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: now}
}

// Get returns the cached value and true if a fresh entry exists. A stale
// entry is evicted and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key, now)
}

// Has reports whether a fresh entry exists. Like Get, it evicts a stale entry.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Invalidate removes the entry for key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll removes every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string, now time.Time) (any, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Fetch is a typed wrapper around FetchWithCache.
func Fetch[V any](ctx context.Context, c *Cache, key string, fetcher func(ctx context.Context) (V, error)) (V, error) {
	v, err := c.FetchWithCache(ctx, key, func(ctx context.Context) (any, error) {
		return fetcher(ctx)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if v == nil {
		var zero V
		return zero, nil
	}
	typed, ok := v.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache: entry %q holds %T, not %T", key, v, zero)
	}
	return typed, nil
}
