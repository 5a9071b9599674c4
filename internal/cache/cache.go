// Package cache memoizes series results for a fixed time-to-live.
//
// A Cache is constructed explicitly and injected into the series client; tests supply
// their own store and clock. Entries are valid while now - created < TTL and expired
// entries are evicted when read. Failed computations are never stored.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/macrolens/internal/domain"
)

// DefaultTTL is how long a computed table is reused.
const DefaultTTL = time.Hour

// Clock abstracts time for expiry checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Options configures a Cache.
type Options struct {
	TTL        time.Duration
	Clock      Clock
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Cache is safe for concurrent use. Concurrent computations for the same key are
// collapsed into one; different keys never block each other.
type Cache struct {
	store Store
	ttl   time.Duration
	clock Clock
	group singleflight.Group
	log   zerolog.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	hitCounter      *prometheus.CounterVec
	missCounter     *prometheus.CounterVec
	evictionCounter *prometheus.CounterVec
}

// New creates a cache on top of store.
func New(store Store, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	c := &Cache{
		store: store,
		ttl:   opts.TTL,
		clock: opts.Clock,
		log:   opts.Logger.With().Str("component", "result_cache").Logger(),
		hitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macrolens",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Result cache hits by operation.",
		}, []string{"operation"}),
		missCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macrolens",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Result cache misses by operation.",
		}, []string{"operation"}),
		evictionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macrolens",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Expired result cache entries removed, by operation.",
		}, []string{"operation"}),
	}

	if opts.Registerer != nil {
		for _, col := range []prometheus.Collector{c.hitCounter, c.missCounter, c.evictionCounter} {
			if err := opts.Registerer.Register(col); err != nil {
				c.log.Warn().Err(err).Msg("Failed to register cache metric")
			}
		}
	}

	return c
}

// NewMemory creates a cache backed by a MemoryStore.
func NewMemory(opts Options) *Cache {
	return New(NewMemoryStore(), opts)
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetOrCompute returns the cached table for key, or runs compute and stores its result.
// An error from compute is returned as-is and nothing is cached.
//
// Callers for the same key share one computation. ctx only bounds how long this caller
// waits: when it is done, ctx.Err() is returned and the computation keeps running for
// the other callers, so compute must not depend on any single caller's context.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func() (*domain.Table, error)) (*domain.Table, error) {
	k := key.String()

	if t, ok := c.lookup(key.Operation, k); ok {
		c.hits.Add(1)
		c.hitCounter.WithLabelValues(key.Operation).Inc()
		c.log.Debug().Str("key", k).Msg("Cache hit")
		return t, nil
	}

	c.misses.Add(1)
	c.missCounter.WithLabelValues(key.Operation).Inc()
	c.log.Debug().Str("key", k).Msg("Cache miss")

	ch := c.group.DoChan(k, func() (interface{}, error) {
		// Another flight may have stored the entry while we waited.
		if t, ok := c.lookup(key.Operation, k); ok {
			return t, nil
		}

		t, err := compute()
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(k, Entry{Table: t, CreatedAt: c.clock.Now()}); err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("Failed to store cache entry")
		}
		return t, nil
	})

	select {
	case <-ctx.Done():
		c.log.Debug().Str("key", k).Msg("Caller stopped waiting for computation")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug().Str("key", k).Msg("Shared in-flight computation")
		}
		return res.Val.(*domain.Table), nil
	}
}

// lookup returns a fresh entry, evicting it first if it has expired.
func (c *Cache) lookup(operation, k string) (*domain.Table, bool) {
	e, ok, err := c.store.Get(k)
	if err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("Failed to read cache entry")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if c.fresh(e) {
		return e.Table, true
	}

	if err := c.store.Delete(k); err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("Failed to evict expired cache entry")
	}
	c.evictions.Add(1)
	c.evictionCounter.WithLabelValues(operation).Inc()
	return nil, false
}

func (c *Cache) fresh(e Entry) bool {
	return c.clock.Now().Sub(e.CreatedAt) < c.ttl
}

// Purge removes every expired entry and returns how many were removed.
func (c *Cache) Purge() (int64, error) {
	n, err := c.store.DeleteExpired(c.clock.Now().Add(-c.ttl))
	if n > 0 {
		c.evictions.Add(uint64(n))
		c.evictionCounter.WithLabelValues("purge").Add(float64(n))
	}
	return n, err
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() (int, error) {
	return c.store.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
