package translate

import (
	"container/list"
	"sync"
)

// lruCache is a bounded key-value cache with least-recently-used eviction.
// It backs the bulk translation path so identical text is translated at
// most once per process lifetime. Safe for concurrent use.
type lruCache struct {
	mu    sync.Mutex
	max   int
	order *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value string
}

// newLRUCache creates a cache holding at most max entries. max must be
// positive.
func newLRUCache(max int) *lruCache {
	if max <= 0 {
		max = 1
	}
	return &lruCache{
		max:   max,
		order: list.New(),
		items: make(map[string]*list.Element, max),
	}
}

// Get returns the cached value for key and marks it recently used.
func (c *lruCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

// Put stores value under key, evicting the least-recently-used entry when
// the cache is full.
func (c *lruCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).value = value
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, value: value})
	c.items[key] = el

	if c.order.Len() > c.max {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the current number of cached entries.
func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
