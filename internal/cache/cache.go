// Package cache provides the key-value cache collaborator used by the
// analytics pipeline and notification services. It exposes the small set of
// primitives the core relies on (hash counters, sorted sets, list lengths,
// key expiry), each atomic at the single-operation level.
package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations the core depends on.
// This allows for different backends (Redis, in-memory for tests).
type Cache interface {
	// HIncrBy atomically increments a hash field by the given amount.
	HIncrBy(ctx context.Context, key, field string, incr int64) error

	// HSet sets one or more fields on a hash.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGetAll returns all fields of a hash. Missing keys return an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// ZAdd adds a member with the given score to a sorted set.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRemRangeByScore removes members with scores in [min, max].
	// min and max accept Redis score syntax, including "-inf" and "+inf".
	ZRemRangeByScore(ctx context.Context, key, min, max string) error

	// ZRangeAll returns all members of a sorted set in score order.
	ZRangeAll(ctx context.Context, key string) ([]string, error)

	// LLen returns the length of a list. Missing keys return 0.
	LLen(ctx context.Context, key string) (int64, error)

	// Set stores a plain string value.
	Set(ctx context.Context, key, value string) error

	// Get returns a plain string value. Missing keys return ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Expire sets a time-to-live on a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
