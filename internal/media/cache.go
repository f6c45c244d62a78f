// Package media holds downloaded attachment payloads and the helpers that
// normalize their provider-shaped metadata.
package media

import (
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/matheus3301/wppbridge/internal/store"
)

// DefaultCapacity is the cache size used when none is configured.
const DefaultCapacity = 200

// Cache is a bounded map of message id to media. When full, the entry
// inserted earliest is evicted regardless of how often it is read.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[string, store.Media]
}

// NewCache returns an empty cache. capacity <= 0 selects DefaultCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  orderedmap.NewOrderedMap[string, store.Media](),
	}
}

// Get returns the cached media for a message id. It does not affect
// eviction order.
func (c *Cache) Get(id string) (store.Media, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(id)
}

// Put stores media for id. Replacing an existing id keeps its original
// insertion position.
func (c *Cache) Put(id string, m store.Media) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries.Has(id) {
		c.entries.Set(id, m)
		return
	}
	if c.entries.Len() >= c.capacity {
		if oldest := c.entries.Front(); oldest != nil {
			c.entries.Delete(oldest.Key)
		}
	}
	c.entries.Set(id, m)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Capacity returns the entry limit set at construction.
func (c *Cache) Capacity() int { return c.capacity }
