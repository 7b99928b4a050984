// Package cache provides the TTL response cache that fronts the
// aggregation engine.
package cache

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yourorg/quickquote/internal/model"
)

// Store is the minimal key/value contract the cache needs: get, and set
// with expiry. The in-process map and the Redis client both satisfy it.
type Store interface {
	Get(ctx context.Context, key string) (*model.AggregateResult, bool)
	Set(ctx context.Context, key string, value *model.AggregateResult, ttl time.Duration)
}

// ResultCache caches aggregate responses per query and coarse geo bucket.
type ResultCache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// New creates a ResultCache over the store. A non-positive ttl falls
// back to the 600s default.
func New(store Store, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	return &ResultCache{store: store, ttl: ttl}
}

// Key derives the cache key for a search. Coordinates round to whole
// degrees: the coarse bucketing deliberately trades location precision
// for hit rate.
func Key(query string, lat, lng float64) string {
	return strings.ToLower(strings.TrimSpace(query)) +
		":" + strconv.Itoa(int(math.Round(lat))) +
		":" + strconv.Itoa(int(math.Round(lng)))
}

// Get returns the cached aggregate for the key, marking it a cache hit.
func (c *ResultCache) Get(ctx context.Context, key string) (*model.AggregateResult, bool) {
	v, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	// Hand out a copy so callers cannot mutate the stored entry.
	hit := *v
	hit.Results = append([]model.Quote(nil), v.Results...)
	hit.CacheHit = true
	return &hit, true
}

// Set stores the aggregate under the key for the cache's TTL.
func (c *ResultCache) Set(ctx context.Context, key string, value *model.AggregateResult) {
	c.store.Set(ctx, key, value, c.ttl)
}

// GetOrSet returns the cached aggregate or computes, stores and returns
// a fresh one. Concurrent misses for the same key are coalesced into a
// single computation; every waiter receives the freshly computed value.
func (c *ResultCache) GetOrSet(ctx context.Context, key string, compute func(ctx context.Context) (*model.AggregateResult, error)) (*model.AggregateResult, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have populated
		// the key while we queued.
		if cached, ok := c.Get(ctx, key); ok {
			return cached, nil
		}
		fresh, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, fresh)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.AggregateResult), nil
}
