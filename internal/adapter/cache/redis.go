// Package cache stores projected replay data in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

const keyPrefix = "replay:data:"

// RedisCache caches ReplayData by run id.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis instance at url
// (redis://[:password@]host:port/db).
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached data for runID, or false on a miss.
func (c *RedisCache) Get(ctx context.Context, runID string) (*domain.ReplayData, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var data domain.ReplayData
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.client.Del(ctx, keyPrefix+runID).Err()
		return nil, false, nil
	}
	return &data, true, nil
}

// Set stores data under its run id.
func (c *RedisCache) Set(ctx context.Context, data *domain.ReplayData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal replay data: %w", err)
	}
	return c.client.Set(ctx, keyPrefix+data.RunID, raw, c.ttl).Err()
}

// Invalidate removes the entry for runID.
func (c *RedisCache) Invalidate(ctx context.Context, runID string) error {
	return c.client.Del(ctx, keyPrefix+runID).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
