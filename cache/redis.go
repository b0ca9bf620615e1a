package cache

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
)

// RedisCache adapts the shared redis client in config to the Cache contract.
// All helpers in config nil-guard the client, so a missing redis degrades to
// an always-miss cache instead of an error path.
type RedisCache struct{}

func (RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return config.GetRedisObject(key, dest)
}

func (RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return config.SetRedisObject(key, value, ttl)
}

func (RedisCache) Delete(ctx context.Context, keys ...string) error {
	return config.RemoveRedisKey(keys...)
}

func (RedisCache) FlushPattern(ctx context.Context, prefix string) (int, error) {
	return config.RemoveRedisPattern(ctx, prefix)
}
