// Package presence contains the Redis-backed live-connection counter shared
// by every gateway process.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL bounds stale counters left behind by a crashed process.
const counterTTL = 24 * time.Hour

// RedisSessionCounter implements gateway.SessionCounter over per-user keys.
type RedisSessionCounter struct {
	client *redis.Client
}

// NewRedisSessionCounter wraps an existing client.
func NewRedisSessionCounter(client *redis.Client) (*RedisSessionCounter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisSessionCounter{client: client}, nil
}

func counterKey(userID string) string { return "presence:conns:" + userID }

// Incr adds one live connection and returns the new global count.
func (c *RedisSessionCounter) Incr(ctx context.Context, userID string) (int64, error) {
	key := counterKey(userID)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment session count: %w", err)
	}
	// Refresh the TTL so active users never expire mid-session.
	_ = c.client.Expire(ctx, key, counterTTL).Err()
	return count, nil
}

// Decr removes one live connection. The count is clamped at zero: a decrement
// racing a crashed-process cleanup must not go negative.
func (c *RedisSessionCounter) Decr(ctx context.Context, userID string) (int64, error) {
	key := counterKey(userID)
	count, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement session count: %w", err)
	}
	if count <= 0 {
		_ = c.client.Del(ctx, key).Err()
		if count < 0 {
			count = 0
		}
	}
	return count, nil
}

// Count reads the current global count; a missing key means zero.
func (c *RedisSessionCounter) Count(ctx context.Context, userID string) (int64, error) {
	count, err := c.client.Get(ctx, counterKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session count: %w", err)
	}
	return count, nil
}
