package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/quickquote/internal/model"
)

// RedisStore backs the result cache with a shared Redis instance, for
// deployments where multiple replicas should share one cache. Expiry is
// delegated to Redis via SET EX. Cache failures are absorbed: a broken
// cache degrades to recomputation, never to request failure.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis instance at addr.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "quickquote:search:",
	}
}

// Get returns the cached value if present.
func (s *RedisStore) Get(ctx context.Context, key string) (*model.AggregateResult, bool) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("Redis cache read failed for %q: %v", key, err)
		}
		return nil, false
	}

	var v model.AggregateResult
	if err := json.Unmarshal(raw, &v); err != nil {
		logrus.Warnf("Corrupt cache entry for %q: %v", key, err)
		return nil, false
	}
	return &v, true
}

// Set stores the value under the key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value *model.AggregateResult, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logrus.Warnf("Failed to encode cache entry for %q: %v", key, err)
		return
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		logrus.Warnf("Redis cache write failed for %q: %v", key, err)
	}
}
