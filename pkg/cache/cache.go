// Package cache provides a generic TTL+LRU cache with background sweeping,
// a bounded-concurrency prefetch queue, and a coarse memory-pressure
// monitor. Caching here is purely advisory: every consumer must tolerate a
// miss, and nothing durable ever lives only in a cache.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is a cached value with its bookkeeping.
type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	ttl        time.Duration

	accessCount    int64
	lastAccessedAt time.Time
}

// expired reports whether the entry is past its TTL at now.
// A non-positive TTL means the entry never expires.
func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) >= e.ttl
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Len       int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is a TTL+LRU cache keyed by string.
//
// Expiry is checked lazily on Get; a periodic [Cache.Sweep] (or the
// background sweeper) proactively purges expired entries. When the cache
// is at capacity, Set evicts the least-recently-accessed entry.
// Safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	lru      *list.List // front = most recently accessed
	now      func() time.Time

	hits, misses, evictions int64
}

// New creates a cache holding at most capacity entries, each visible for
// ttl after insertion. ttl <= 0 disables expiry; capacity <= 0 panics.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for key. An entry past its TTL counts as a
// miss and is removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[V])
	now := c.now()
	if e.expired(now) {
		c.removeLocked(el)
		c.misses++
		return zero, false
	}
	e.accessCount++
	e.lastAccessedAt = now
	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key, resetting its TTL window. At capacity the
// least-recently-accessed entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.insertedAt = now
		e.lastAccessedAt = now
		c.lru.MoveToFront(el)
		return
	}
	if c.lru.Len() >= c.capacity {
		if back := c.lru.Back(); back != nil {
			c.removeLocked(back)
			c.evictions++
		}
	}
	c.entries[key] = c.lru.PushFront(&entry[V]{
		key:            key,
		value:          value,
		insertedAt:     now,
		ttl:            c.ttl,
		lastAccessedAt: now,
	})
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	c.mu.Unlock()
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
	c.mu.Unlock()
}

// Sweep removes all expired entries and returns how many were purged.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry[V]).expired(now) {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       c.lru.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// StartSweeper launches a goroutine calling Sweep every interval.
// The returned stop function terminates it and is safe to call once.
func (c *Cache[V]) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// removeLocked unlinks an element from both the map and the LRU list.
// Caller holds c.mu.
func (c *Cache[V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(c.entries, e.key)
	c.lru.Remove(el)
}
