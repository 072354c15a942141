// Package viewcache keeps loaded dashboard views and drops the ones a
// mutation made stale.
//
// Every cached view records the backend paths it was built from. After a
// mutation, InvalidateMany evicts each view with a dependency path that
// contains any of the given keys, so the next Load rebuilds it from fresh
// backend data. Matching is by substring: the key "/stats/robot/<id>" also
// invalidates a view that read "/stats/robot/<id>/network".
//
// Views are also bounded in age. With no max age every Load rebuilds its view
// from the backend; with one, a view is reused until it is that old.
package viewcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/metrics"
)

// DefaultSize is the number of views kept when no size is configured.
const DefaultSize = 64

type entry struct {
	value    any
	deps     []string
	loadedAt time.Time
}

// Cache is a bounded, least-recently-used store of views.
type Cache struct {
	mu         sync.Mutex // orders stores against invalidations
	entries    *lru.Cache[string, entry]
	generation uint64
	maxAge     time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics counts invalidations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithMaxAge lets a stored view be reused until it is older than d. Zero
// disables reuse, so every Load goes to the backend.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) { c.maxAge = d }
}

// New creates a cache holding at most size views.
func New(size int, opts ...Option) (*Cache, error) {
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("view cache: %w", err)
	}
	c := &Cache{entries: entries, logger: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadFunc builds a view and reports the backend paths it read.
type LoadFunc[V any] func(ctx context.Context) (value V, deps []string, err error)

// Load returns the view under key while it is younger than the max age,
// building it with load otherwise. Failed loads are not cached. A view whose
// load overlapped an invalidation is returned to the caller but not stored,
// since it may predate the mutation.
func Load[V any](ctx context.Context, c *Cache, key string, load LoadFunc[V]) (V, error) {
	if cached, ok := c.entries.Get(key); ok && c.fresh(cached) {
		if v, ok := cached.value.(V); ok {
			return v, nil
		}
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	value, deps, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	if c.maxAge > 0 {
		c.mu.Lock()
		if c.generation == gen {
			c.entries.Add(key, entry{value: value, deps: deps, loadedAt: time.Now()})
		}
		c.mu.Unlock()
	}

	return value, nil
}

func (c *Cache) fresh(e entry) bool {
	return c.maxAge > 0 && time.Since(e.loadedAt) < c.maxAge
}

// InvalidateMany evicts every view with a dependency path containing any of
// keys and returns how many were evicted.
func (c *Cache) InvalidateMany(keys []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++

	evicted := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok || !dependsOnAny(e.deps, keys) {
			continue
		}
		c.entries.Remove(key)
		evicted++
	}

	c.metrics.AddInvalidations(evicted)
	c.logger.Debug().Strs("keys", keys).Int("evicted", evicted).Msg("views invalidated")
	return evicted
}

// Len returns the number of cached views.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every view.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries.Purge()
}

func dependsOnAny(deps, keys []string) bool {
	for _, dep := range deps {
		for _, key := range keys {
			if strings.Contains(dep, key) {
				return true
			}
		}
	}
	return false
}
