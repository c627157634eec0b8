// package covercache bounds cover-art downloads by aggregate size and age
package covercache

import (
	"sync"
	"time"
)

const (
	// maxBytes caps the aggregate payload size; a single payload over the
	// cap is rejected outright.
	maxBytes = 50 * 1024 * 1024
	// ttl is the per-entry lifetime.
	ttl = 5 * time.Minute
)

type entry struct {
	buffer     []byte
	insertedAt time.Time
	lastUsed   time.Time
}

// Cache is an LRU keyed by image URL with a two-dimensional bound:
// aggregate bytes and per-entry TTL. One album batch shares a single entry
// because every track carries the same prefetched image URL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	size    int64
	now     func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get returns the cached buffer for url and refreshes its recency.
// Expired entries are dropped and reported as misses.
func (c *Cache) Get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}

	now := c.now()
	if now.Sub(e.insertedAt) > ttl {
		c.removeLocked(url)
		return nil, false
	}

	e.lastUsed = now
	return e.buffer, true
}

// Put inserts buffer under url, evicting least-recently-used entries until
// the aggregate fits. Payloads larger than the cap are not cached.
func (c *Cache) Put(url string, buffer []byte) {
	if int64(len(buffer)) > maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[url]; ok {
		c.removeLocked(url)
	}

	for c.size+int64(len(buffer)) > maxBytes {
		oldest := ""
		var oldestUsed time.Time
		for key, e := range c.entries {
			if oldest == "" || e.lastUsed.Before(oldestUsed) {
				oldest = key
				oldestUsed = e.lastUsed
			}
		}
		if oldest == "" {
			break
		}
		c.removeLocked(oldest)
	}

	now := c.now()
	c.entries[url] = &entry{buffer: buffer, insertedAt: now, lastUsed: now}
	c.size += int64(len(buffer))
}

// Cleanup drops expired entries.
func (c *Cache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, e := range c.entries {
		if now.Sub(e.insertedAt) > ttl {
			c.removeLocked(url)
		}
	}
}

// Size returns the aggregate cached bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(url string) {
	if e, ok := c.entries[url]; ok {
		c.size -= int64(len(e.buffer))
		delete(c.entries, url)
	}
}
