package cache

import (
	"context"
	"net/url"
	"time"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// AllFlightsKey is the key of the unfiltered fetch
const AllFlightsKey = "all"

// Loader fetches the batch for a key on a cache miss
type Loader = func(ctx context.Context) ([]entity.Flight, error)

type entry struct {
	flights   []entity.Flight
	createdAt time.Time
}

// ResultCache is a TTL and capacity bound store of fetched batches.
// Concurrent misses on one key share a single loader call.
// Returned batches are shared; callers must copy before mutating.
type ResultCache struct {
	ttl     time.Duration
	store   *expirable.LRU[string, entry]
	group   singleflight.Group
	now     func() time.Time
	logger  logger.Logger
	metrics *metrics.Metrics
}

// Option configures a ResultCache
type Option func(*ResultCache)

// WithClock replaces time.Now for freshness checks
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

// NewResultCache creates a cache holding at most capacity batches for ttl each
func NewResultCache(capacity int, ttl time.Duration, log logger.Logger, m *metrics.Metrics, opts ...Option) *ResultCache {
	c := &ResultCache{
		ttl:     ttl,
		now:     time.Now,
		logger:  log.With("component", "result_cache"),
		metrics: m,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.store = expirable.NewLRU[string, entry](capacity, func(key string, _ entry) {
		c.metrics.CacheEvictions.Inc()
	}, ttl)

	return c
}

// GetOrLoad returns the fresh batch for key, or runs load once for all
// concurrent callers of the same key. Empty and failed loads are not stored.
// A caller whose ctx ends stops waiting; the shared load keeps running for the others.
func (c *ResultCache) GetOrLoad(ctx context.Context, key string, load Loader) ([]entity.Flight, error) {
	if flights, ok := c.lookup(key); ok {
		c.metrics.CacheHits.Inc()
		c.logger.Debug("Cache hit", "key", key, "size", len(flights))
		return flights, nil
	}
	c.metrics.CacheMisses.Inc()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// a load for this key may have finished between lookup and DoChan
		if flights, ok := c.lookup(key); ok {
			return flights, nil
		}

		flights, err := load(loadCtx)
		if err != nil {
			c.metrics.CacheLoads.WithLabelValues("failure").Inc()
			c.logger.Warn("Cache load failed", "key", key, "error", err)
			return nil, err
		}
		if len(flights) == 0 {
			c.metrics.CacheLoads.WithLabelValues("empty").Inc()
			c.logger.Info("Cache load returned no flights, not caching", "key", key)
			return flights, nil
		}

		c.store.Add(key, entry{flights: flights, createdAt: c.now()})
		c.metrics.CacheLoads.WithLabelValues("success").Inc()
		c.logger.Info("Cache populated", "key", key, "size", len(flights))
		return flights, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		flights, _ := res.Val.([]entity.Flight)
		return flights, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of stored batches
func (c *ResultCache) Len() int {
	return c.store.Len()
}

// Keys returns the stored keys, oldest first
func (c *ResultCache) Keys() []string {
	return c.store.Keys()
}

// lookup treats a stale entry as a miss without removing it. The reload
// overwrites it, and a concurrent reload's fresh entry is never dropped.
func (c *ResultCache) lookup(key string) ([]entity.Flight, bool) {
	e, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		return nil, false
	}
	return e.flights, true
}

// KeyFor builds the canonical cache key of a filter set: AllFlightsKey when
// empty, otherwise the sorted, query-escaped filter pairs.
func KeyFor(filters map[string]string) string {
	if len(filters) == 0 {
		return AllFlightsKey
	}
	q := make(url.Values, len(filters))
	for name, value := range filters {
		q.Set(name, value)
	}
	return q.Encode()
}
