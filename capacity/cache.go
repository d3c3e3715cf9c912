package capacity

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a fetched profile is trusted.
const DefaultCacheTTL = 2 * time.Minute

// =============================================================================
// PROFILE CACHE - Injected key/value store with TTL semantics
// =============================================================================

// CacheEntry is a profile plus the instant it was fetched from the store.
type CacheEntry struct {
	Profile   Profile
	FetchedAt time.Time
}

// Fresh reports whether the entry is younger than ttl at now.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// ProfileCache stores profiles by user. Staleness is judged by the caller
// from FetchedAt, so implementations only need get/set/delete.
type ProfileCache interface {
	Get(userID UserID) (CacheEntry, bool)
	Set(userID UserID, entry CacheEntry)
	Delete(userID UserID)
	Clear()
}

// MemoryCache is the process-local ProfileCache. Racing writers for the same
// key resolve last-writer-wins.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[UserID]CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[UserID]CacheEntry)}
}

func (c *MemoryCache) Get(userID UserID) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	return e, ok
}

func (c *MemoryCache) Set(userID UserID, entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = entry
}

func (c *MemoryCache) Delete(userID UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[UserID]CacheEntry)
}

// Len returns the number of cached entries, stale ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
