// internal/cache/cache.go

// Package cache implements the per-session element cache. Repeated lookups
// of the same locator on an unchanged screen are wasteful; the cache keeps
// resolved handles for a fixed TTL, probes them for liveness on every hit,
// and evicts least-recently-used entries under capacity pressure.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/halcyonqa/halcyon/internal/driver"
	"github.com/halcyonqa/halcyon/internal/locator"
)

// Probe checks that a handle still refers to an attached element. It must
// be cheap; it runs on every cache hit.
type Probe func(ctx context.Context, h driver.Handle) bool

// Stats is a read-only view of the cache counters. Counters survive
// Clear and SetEnabled; only process restart resets them.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

type entry struct {
	handle         driver.Handle
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
}

// Cache maps locators to previously resolved element handles.
//
// The cache is owned by a single session pipeline, so reads and writes are
// not concurrent with each other; the enabled flag is the one control that
// may be toggled from a background goroutine, hence the atomic.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[locator.Locator, *entry]

	ttl     time.Duration
	probe   Probe
	logger  *zap.Logger
	enabled atomic.Bool
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New builds a cache with the given TTL and capacity. The probe is invoked
// on every hit to detect stale handles; a nil probe treats every handle as
// live.
func New(ttl time.Duration, capacity int, probe Probe, logger *zap.Logger) (*Cache, error) {
	entries, err := lru.New[locator.Locator, *entry](capacity)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		probe = func(context.Context, driver.Handle) bool { return true }
	}
	c := &Cache{
		entries: entries,
		ttl:     ttl,
		probe:   probe,
		logger:  logger.Named("cache"),
		now:     time.Now,
	}
	c.enabled.Store(true)
	return c, nil
}

// Get returns the cached handle for a locator. A hit requires the entry to
// exist, to be inside its TTL window, and to pass the liveness probe; a
// failed probe evicts the entry and reports a miss, absorbing the stale
// handle entirely inside the cache.
func (c *Cache) Get(ctx context.Context, loc locator.Locator) (driver.Handle, bool) {
	if !c.enabled.Load() {
		return driver.Handle{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(loc)
	if !ok {
		c.misses.Add(1)
		return driver.Handle{}, false
	}

	now := c.now()
	if !now.Before(e.expiresAt) {
		c.entries.Remove(loc)
		c.evictions.Add(1)
		c.misses.Add(1)
		c.logger.Debug("Entry expired.", zap.Stringer("locator", loc))
		return driver.Handle{}, false
	}

	if !c.probe(ctx, e.handle) {
		c.entries.Remove(loc)
		c.evictions.Add(1)
		c.misses.Add(1)
		c.logger.Debug("Entry stale, evicted.", zap.Stringer("locator", loc))
		return driver.Handle{}, false
	}

	e.lastAccessedAt = now
	c.hits.Add(1)
	return e.handle, true
}

// Put stores a freshly resolved handle. At capacity the least-recently
// accessed entry is evicted first.
func (c *Cache) Put(loc locator.Locator, h driver.Handle) {
	if !c.enabled.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := c.entries.Add(loc, &entry{
		handle:         h,
		createdAt:      now,
		expiresAt:      now.Add(c.ttl),
		lastAccessedAt: now,
	})
	if evicted {
		c.evictions.Add(1)
	}
}

// Invalidate drops the entry for a single locator, if present.
func (c *Cache) Invalidate(loc locator.Locator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(loc)
}

// Clear drops every entry. Called after actions that structurally change
// the screen; statistics counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.logger.Debug("Cache cleared.")
}

// SetEnabled toggles bypass mode. Disabling purges the entries but keeps
// the counters; the flag is safe to flip from a background monitor.
func (c *Cache) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
	if !enabled {
		c.Clear()
	}
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool { return c.enabled.Load() }

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// setClock replaces the time source. Tests only.
func (c *Cache) setClock(now func() time.Time) { c.now = now }
