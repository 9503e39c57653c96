package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKeyPrefix namespaces every key the storefront writes, so a Redis shared
// with other services can be flushed selectively.
const CacheKeyPrefix = "scolay:"

// RedisCacheRepo stores opaque byte values under CacheKeyPrefix.
type RedisCacheRepo struct {
	rdb redis.UniversalClient
}

// NewRedisCacheRepo wraps rdb. A nil client is accepted for tests that only
// exercise argument checks.
func NewRedisCacheRepo(rdb redis.UniversalClient) *RedisCacheRepo {
	return &RedisCacheRepo{rdb: rdb}
}

func namespaced(key string) (string, error) {
	if key == "" {
		return "", ErrCacheKeyRequired
	}
	return CacheKeyPrefix + key, nil
}

// Set writes value under key; ttl <= 0 keeps it until evicted.
func (r *RedisCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := namespaced(key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.rdb.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get returns the value under key, or (nil, nil) on a miss.
func (r *RedisCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	k, err := namespaced(key)
	if err != nil {
		return nil, err
	}
	b, err := r.rdb.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return b, nil
}

// Delete drops key and reports whether anything was removed.
func (r *RedisCacheRepo) Delete(ctx context.Context, key string) (bool, error) {
	k, err := namespaced(key)
	if err != nil {
		return false, err
	}
	n, err := r.rdb.Del(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("cache del %s: %w", key, err)
	}
	return n > 0, nil
}

// Health pings Redis; it backs the "redis" readiness check.
func (r *RedisCacheRepo) Health(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
