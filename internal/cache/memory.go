package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// MemoryCache is an in-process TTL cache. It is bounded by the number of
// active users and carries no eviction beyond per-user overwrite and the
// periodic sweep (see Janitor).
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	set      models.CompletionSet
	storedAt time.Time
}

// NewMemoryCache creates a memory cache with the given TTL.
// Non-positive TTLs fall back to DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Read returns the cached set unless the entry is absent or expired
func (c *MemoryCache) Read(ctx context.Context, userID string) (models.CompletionSet, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, false, nil
	}

	return entry.set.Clone(), true, nil
}

// Write stores an independent copy of the set with timestamp now
func (c *MemoryCache) Write(ctx context.Context, userID string, set models.CompletionSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = memoryEntry{
		set:      set.Clone(),
		storedAt: c.now(),
	}
	return nil
}

// Invalidate drops the user's entry
func (c *MemoryCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, userID)
	return nil
}

// Close releases all entries
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryEntry)
	return nil
}

// SweepExpired drops entries past their TTL and returns how many were removed
func (c *MemoryCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for userID, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, userID)
			removed++
		}
	}
	return removed
}
