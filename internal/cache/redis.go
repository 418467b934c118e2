// Package cache stores derived analysis results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written by this package.
const KeyPrefix = "chromatrace"

// DefaultTTL is used when a non-positive TTL is configured.
const DefaultTTL = 15 * time.Minute

// RedisCache keeps JSON encoded results under chromatrace:<kind>:<key>.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache creates a cache on an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

// Options configures Connect.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Connect dials Redis and verifies the connection with a PING.
func Connect(ctx context.Context, opts Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return NewRedisCache(client, opts.TTL), nil
}

// Key returns the Redis key of a cached result.
func Key(kind, key string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, kind, key)
}

// Get decodes the cached value into dst. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, kind, key string, dst any) (bool, error) {
	data, err := c.redis.Get(ctx, Key(kind, key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s from Redis: %w", kind, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", kind, err)
	}
	return true, nil
}

// Set stores value with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, kind, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	if err := c.redis.Set(ctx, Key(kind, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", kind, err)
	}
	return nil
}

// Invalidate removes every cached result of one kind, or of all kinds when
// kind is empty.
func (c *RedisCache) Invalidate(ctx context.Context, kind string) (int, error) {
	pattern := KeyPrefix + ":*"
	if kind != "" {
		pattern = fmt.Sprintf("%s:%s:*", KeyPrefix, kind)
	}

	var removed int
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return removed, nil
}

// Ping checks that Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
