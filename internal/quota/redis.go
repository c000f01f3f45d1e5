package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// counterTTL keeps a day's key around long enough to cover every timezone
// offset, after which Redis drops it.
const counterTTL = 48 * time.Hour

// releaseScript decrements a counter without letting it go negative.
var releaseScript = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// RedisCounter keeps daily counts in Redis with INCR.
type RedisCounter struct {
	redis *redis.Client
}

// NewRedisCounter creates a counter backed by Redis.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (c *RedisCounter) key(orgID uuid.UUID, resourceType string, day time.Time) string {
	return fmt.Sprintf("autoaccept:quota:%s:%s:%s", orgID, resourceType, day.Format("2006-01-02"))
}

// IncrementAndGet increments the day's counter and returns the new value.
func (c *RedisCounter) IncrementAndGet(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error) {
	key := c.key(orgID, resourceType, day)
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis counter: incr: %w", err)
	}

	// Set expiry only on first increment
	if count == 1 {
		if err := c.redis.Expire(ctx, key, counterTTL).Err(); err != nil {
			return 0, fmt.Errorf("redis counter: expire: %w", err)
		}
	}
	return int(count), nil
}

// Release decrements the day's counter, never below zero.
func (c *RedisCounter) Release(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) error {
	if err := releaseScript.Run(ctx, c.redis, []string{c.key(orgID, resourceType, day)}).Err(); err != nil {
		return fmt.Errorf("redis counter: release: %w", err)
	}
	return nil
}

// Current returns the day's counter, zero when the key is absent.
func (c *RedisCounter) Current(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error) {
	count, err := c.redis.Get(ctx, c.key(orgID, resourceType, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis counter: get: %w", err)
	}
	return count, nil
}
