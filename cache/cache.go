// Package cache is the read-through memoization layer in front of expensive
// aggregate queries. Values are stored as JSON with an explicit presence flag,
// so a cached zero/false/empty value is still a hit; only a true miss (or a
// cache error, which is never fatal) triggers recomputation.
package cache

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
)

type Cache interface {
	// Get unmarshals the cached value into dest. The bool reports presence.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// FlushPattern evicts every key starting with prefix, returns evicted count.
	FlushPattern(ctx context.Context, prefix string) (int, error)
}

// Remember returns the cached value for key, or computes, stores and returns
// it. Cache failures on either side degrade to a plain compute: a broken cache
// must never fail a read, and must never silently serve stale data either.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	exists, err := c.Get(ctx, key, &cached)
	if err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "cache.go", "Remember", "cache get, falling through to compute", key, err)
	} else if exists {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "cache.go", "Remember", "cache set", key, err)
	}
	return value, nil
}

var fallback = NewMemoryCache()

// Std returns the process cache: redis when connected, otherwise an
// in-process fallback. Both sides share the same key scheme, so a late redis
// connect only costs recomputation, never staleness.
func Std() Cache {
	if config.GetRedisDB() != nil {
		return RedisCache{}
	}
	return fallback
}
