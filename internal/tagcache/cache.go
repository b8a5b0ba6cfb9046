// Package tagcache caches each user's distinct tag list so frequent
// "what tags do I have" queries avoid a table scan. Entries expire after a
// short TTL and are invalidated eagerly on any tag mutation, so staleness is
// bounded by the TTL only when an invalidation is missed.
package tagcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds staleness for cached tag lists.
const DefaultTTL = 60 * time.Second

// Cache stores per-user tag lists. Implementations must return tags in
// sorted order and must treat expired entries as absent.
type Cache interface {
	// Get returns the cached tag list for a user. The second return is false
	// on a miss (absent or expired).
	Get(ctx context.Context, userID uuid.UUID) ([]string, bool, error)
	// Set caches the tag list for a user, replacing any existing entry.
	Set(ctx context.Context, userID uuid.UUID, tags []string) error
	// Invalidate removes a user's entry. Removing an absent entry is not an
	// error.
	Invalidate(ctx context.Context, userID uuid.UUID) error
	// ClearAll removes every entry.
	ClearAll(ctx context.Context) error
}

type memoryEntry struct {
	tags      []string
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. It is the default backend and is safe
// for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached tags for a user, or a miss if absent or expired.
// Expired entries are deleted on access.
func (c *MemoryCache) Get(_ context.Context, userID uuid.UUID) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return nil, false, nil
	}

	out := make([]string, len(entry.tags))
	copy(out, entry.tags)
	return out, true, nil
}

// Set stores a sorted copy of tags for the user.
func (c *MemoryCache) Set(_ context.Context, userID uuid.UUID, tags []string) error {
	stored := make([]string, len(tags))
	copy(stored, tags)
	sort.Strings(stored)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = memoryEntry{
		tags:      stored,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Invalidate removes the user's entry if present.
func (c *MemoryCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userID)
	return nil
}

// ClearAll removes every entry.
func (c *MemoryCache) ClearAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uuid.UUID]memoryEntry)
	return nil
}
