package tagcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tagcache:"

// RedisCache is a Cache backed by Redis, for deployments running more than
// one API replica. Entries expire server-side via key TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache using an already-configured
// client. A non-positive ttl falls back to DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(userID uuid.UUID) string {
	return redisKeyPrefix + userID.String()
}

// Get returns the cached tags for a user, or a miss if the key is absent.
func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tag cache get: %w", err)
	}

	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return tags, true, nil
}

// Set stores a sorted copy of tags for the user with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID uuid.UUID, tags []string) error {
	stored := make([]string, len(tags))
	copy(stored, tags)
	sort.Strings(stored)

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("tag cache encode: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("tag cache set: %w", err)
	}
	return nil
}

// Invalidate removes the user's entry if present.
func (c *RedisCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("tag cache invalidate: %w", err)
	}
	return nil
}

// ClearAll removes every tag cache entry by scanning the key prefix.
func (c *RedisCache) ClearAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("tag cache clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("tag cache scan: %w", err)
	}
	return nil
}
