package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("cache key not found")

// RedisCache implements Cache using a Redis client.
// All operations map one-to-one onto Redis commands, so the atomicity
// guarantees of the interface hold without client-side locking.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis-backed cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// HIncrBy atomically increments a hash field by the given amount.
func (c *RedisCache) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return c.client.HIncrBy(ctx, key, field, incr).Err()
}

// HSet sets one or more fields on a hash.
func (c *RedisCache) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	// go-redis accepts map[string]interface{} for variadic HSET
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return c.client.HSet(ctx, key, values).Err()
}

// HGetAll returns all fields of a hash.
func (c *RedisCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

// ZAdd adds a member with the given score to a sorted set.
func (c *RedisCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRemRangeByScore removes members with scores in [min, max].
func (c *RedisCache) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	return c.client.ZRemRangeByScore(ctx, key, min, max).Err()
}

// ZRangeAll returns all members of a sorted set in score order.
func (c *RedisCache) ZRangeAll(ctx context.Context, key string) ([]string, error) {
	return c.client.ZRange(ctx, key, 0, -1).Result()
}

// LLen returns the length of a list.
func (c *RedisCache) LLen(ctx context.Context, key string) (int64, error) {
	return c.client.LLen(ctx, key).Result()
}

// Set stores a plain string value.
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

// Get returns a plain string value.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Expire sets a time-to-live on a key.
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// Ping verifies the Redis server is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
