// Package cache provides a Redis-backed byte cache that degrades to a no-op
// when Redis is unreachable, so callers always fall back to the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plotbook-crm/internal/config"
	"github.com/redis/go-redis/v9"
)

// DashboardSummaryKey holds the JSON encoded dashboard summary
const DashboardSummaryKey = "reports:dashboard:summary"

// Store is the cache surface used by services
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
	Healthy(ctx context.Context) bool
}

// RedisCache implements Store. A nil client turns every call into a miss.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Store = (*RedisCache)(nil)

// NewRedisCache connects to Redis. On ping failure it logs a warning and
// returns a cache with no client rather than failing startup.
func NewRedisCache(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, caching disabled", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return &RedisCache{logger: logger}
	}

	logger.Info("Connected to Redis", "addr", cfg.Addr)
	return &RedisCache{client: client, logger: logger}
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(logger *slog.Logger, client *redis.Client) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get returns cached bytes for key
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores bytes under key with a TTL
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

// Invalidate removes specific keys
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) {
	if c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Cache invalidation failed", "keys", keys, "error", err)
	}
}

// Healthy reports whether Redis answers a ping
func (c *RedisCache) Healthy(ctx context.Context) bool {
	if c.client == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(pingCtx).Err() == nil
}

// Close releases the underlying connection pool
func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	c.logger.Info("Closed Redis connection")
	return nil
}
