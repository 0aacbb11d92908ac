// Package cache provides the in-memory pieces of spoon's caching: a byte
// cache with LRU eviction and TTL, and a content hash provider used to decide
// whether a compiled unit is stale.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a size-bounded LRU cache of byte values with a TTL.
type Cache struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	// LRU list with sentinel head and tail
	head *entry
	tail *entry
	// Statistics tracking (atomic for thread safety)
	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	value     []byte
	createdAt time.Time
	size      int64
	prev      *entry
	next      *entry
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits over lookups, or zero before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates a cache holding at most maxSize bytes of keys and values.
// A zero ttl keeps entries until they are evicted.
func New(maxSize int64, ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		head:    &entry{},
		tail:    &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.createdAt) > c.ttl {
		c.remove(e)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Set stores a value, evicting least recently used entries to make room.
// Values larger than the whole cache are not stored.
func (c *Cache) Set(key string, value []byte) {
	size := int64(len(key) + len(value))
	if size > c.maxSize {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
	c.evictIfNeeded(size)

	e := &entry{
		key:       key,
		value:     value,
		createdAt: time.Now(),
		size:      size,
	}
	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
}

// Clear clears all cache entries and resets statistics
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Stats{
		Entries:   len(c.entries),
		Size:      c.currentSize,
		MaxSize:   c.maxSize,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

func (c *Cache) evictIfNeeded(newSize int64) {
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		c.remove(c.tail.prev)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// LRU doubly-linked list operations
func (c *Cache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *Cache) remove(e *entry) {
	c.unlink(e)
	delete(c.entries, e.key)
	c.currentSize -= e.size
}

func (c *Cache) moveToFront(e *entry) {
	c.unlink(e)
	c.addToFront(e)
}
