package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// zmember is a single sorted-set entry.
type zmember struct {
	score  float64
	member string
}

// InMemoryCache is an in-memory implementation of Cache.
// Thread-safe via a single mutex; intended for tests and local development.
// Expirations are recorded and enforced lazily on read.
type InMemoryCache struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	zsets   map[string][]zmember
	strings map[string]string
	lists   map[string][]string
	expiry  map[string]time.Time

	now func() time.Time
}

// NewInMemoryCache creates a new in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		hashes:  make(map[string]map[string]string),
		zsets:   make(map[string][]zmember),
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		expiry:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock used for expiry checks. Test hook.
func (c *InMemoryCache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// expired reports whether key has a passed deadline, deleting it if so.
// Caller must hold the mutex.
func (c *InMemoryCache) expired(key string) bool {
	deadline, ok := c.expiry[key]
	if !ok || c.now().Before(deadline) {
		return false
	}
	delete(c.hashes, key)
	delete(c.zsets, key)
	delete(c.strings, key)
	delete(c.lists, key)
	delete(c.expiry, key)
	return true
}

// HIncrBy atomically increments a hash field by the given amount.
func (c *InMemoryCache) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	h := c.hashes[key]
	if h == nil {
		h = make(map[string]string)
		c.hashes[key] = h
	}
	cur := parseInt(h[field])
	h[field] = formatInt(cur + incr)
	return nil
}

// HSet sets one or more fields on a hash.
func (c *InMemoryCache) HSet(ctx context.Context, key string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	h := c.hashes[key]
	if h == nil {
		h = make(map[string]string)
		c.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// HGetAll returns a copy of all fields of a hash.
func (c *InMemoryCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	out := make(map[string]string, len(c.hashes[key]))
	for k, v := range c.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// ZAdd adds a member with the given score to a sorted set.
// Re-adding an existing member updates its score, matching Redis semantics.
func (c *InMemoryCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	set := c.zsets[key]
	for i := range set {
		if set[i].member == member {
			set[i].score = score
			c.sortLocked(key)
			return nil
		}
	}
	c.zsets[key] = append(set, zmember{score: score, member: member})
	c.sortLocked(key)
	return nil
}

// sortLocked keeps a sorted set ordered by score. Caller must hold the mutex.
func (c *InMemoryCache) sortLocked(key string) {
	set := c.zsets[key]
	sort.SliceStable(set, func(i, j int) bool { return set[i].score < set[j].score })
}

// ZRemRangeByScore removes members with scores in [min, max].
// Supports "-inf" and "+inf" bounds like Redis.
func (c *InMemoryCache) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	lo := parseScore(min, true)
	hi := parseScore(max, false)

	set := c.zsets[key]
	kept := set[:0]
	for _, m := range set {
		if m.score >= lo && m.score <= hi {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		delete(c.zsets, key)
		return nil
	}
	c.zsets[key] = kept
	return nil
}

// ZRangeAll returns all members of a sorted set in score order.
func (c *InMemoryCache) ZRangeAll(ctx context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	set := c.zsets[key]
	out := make([]string, len(set))
	for i, m := range set {
		out[i] = m.member
	}
	return out, nil
}

// LLen returns the length of a list.
func (c *InMemoryCache) LLen(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)
	return int64(len(c.lists[key])), nil
}

// LPush prepends values to a list. Not part of the Cache interface; used by
// tests to seed queue depths.
func (c *InMemoryCache) LPush(ctx context.Context, key string, values ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[key] = append(values, c.lists[key]...)
}

// Set stores a plain string value.
func (c *InMemoryCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)
	c.strings[key] = value
	return nil
}

// Get returns a plain string value.
func (c *InMemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)

	val, ok := c.strings[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

// Expire sets a time-to-live on a key.
func (c *InMemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiry[key] = c.now().Add(ttl)
	return nil
}

// TTL returns the remaining time-to-live recorded for a key, or zero if none.
// Not part of the Cache interface; used by tests to assert expirations.
func (c *InMemoryCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := c.expiry[key]
	if !ok {
		return 0
	}
	return deadline.Sub(c.now())
}

// Ping always succeeds for the in-memory cache.
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}
