package regime

import (
	"sync"
	"time"
)

// Cache memoizes classifications keyed by (symbol, stride bucket).
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	regime  Regime
	expires time.Time
}

// NewCache creates a cache with the given entry TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry, 256),
		ttl:     ttl,
	}
}

// Key buckets a window-end timestamp by stride so that nearby windows share
// a classification. stride <= 0 means every timestamp gets its own key.
func Key(symbol string, windowEnd time.Time, stride time.Duration) string {
	if stride > 0 {
		windowEnd = windowEnd.Truncate(stride)
	}
	return symbol + "@" + windowEnd.UTC().Format(time.RFC3339)
}

// Get returns the cached regime for key, if present and unexpired.
func (c *Cache) Get(key string) (Regime, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return Regime{}, false
	}
	return e.regime, true
}

// Put stores a regime under key.
func (c *Cache) Put(key string, r Regime) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{regime: r, expires: time.Now().Add(c.ttl)}
	// Opportunistic sweep once the map grows
	if len(c.entries) > 4096 {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()
}

// Len returns the current number of entries, expired included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
