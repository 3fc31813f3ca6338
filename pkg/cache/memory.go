package cache

import "sync"

// DefaultMaxEntries is the default capacity of the in-memory tier.
const DefaultMaxEntries = 1000

// MemoryCache is the process-local cache tier: a bounded key/value store
// with lazy expiry and FIFO eviction.
//
// Eviction is oldest-inserted-first, not LRU. The bound exists only to
// keep memory in check; the memory tier is not a tuned hot-set cache.
// Expired entries are evicted when a read touches them; there is no
// background sweep.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	// order keeps keys in insertion order; the front is the oldest key.
	order   []string
	maxSize int
	clock   Clock
}

// NewMemoryCache creates a memory tier holding at most maxSize entries.
// maxSize <= 0 falls back to DefaultMaxEntries.
func NewMemoryCache(maxSize int, clock Clock) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	if clock == nil {
		clock = realClock{}
	}
	return &MemoryCache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
		clock:   clock,
	}
}

// GetEntry returns the entry for key with its freshness metadata, or nil
// on absence or expiry. An expired entry is removed as a side effect.
func (c *MemoryCache) GetEntry(key string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if entry.IsExpired(c.clock.Now()) {
		c.remove(key)
		return nil
	}
	return entry
}

// Get returns the cached payload for key, or nil on absence or expiry.
func (c *MemoryCache) Get(key string) []byte {
	entry := c.GetEntry(key)
	if entry == nil {
		return nil
	}
	return entry.Data
}

// Set stores an entry. If the cache is at capacity and key is new, the
// oldest-inserted entry is evicted first.
func (c *MemoryCache) Set(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry
}

// Delete removes key. Removing an absent key is a no-op.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

// Has reports whether key holds a non-expired entry, with the same lazy
// expiry side effect as Get.
func (c *MemoryCache) Has(key string) bool {
	return c.GetEntry(key) != nil
}

// Clear drops all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.order = nil
}

// Len returns the number of stored entries, counting expired entries not
// yet lazily evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove deletes key from both the map and the order queue.
// Caller must hold c.mu.
func (c *MemoryCache) remove(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// evictOldest drops the front of the insertion queue.
// Caller must hold c.mu.
func (c *MemoryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
	cacheEvictions.Inc()
}
