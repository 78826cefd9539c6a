// Package cache is a small TTL cache with passive expiry.
//
// A Cache is not safe for concurrent use; callers that share one across
// goroutines must guard it.
package cache

import "time"

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache keeps at most capacity entries. An entry older than ttl is dropped
// when it is read; when a Set exceeds capacity the oldest entry goes.
type Cache[K comparable, V any] struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
	entries  map[K]entry[V]
	order    []K // insertion order, oldest first
}

// New creates a cache. A non-positive capacity means unbounded and a
// non-positive ttl means entries never expire.
func New[K comparable, V any](ttl time.Duration, capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[K]entry[V]),
	}
}

// WithClock replaces the time source.
func (c *Cache[K, V]) WithClock(now func() time.Time) *Cache[K, V] {
	c.now = now
	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.Delete(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, refreshing its age.
func (c *Cache[K, V]) Set(key K, value V) {
	if _, ok := c.entries[key]; ok {
		c.removeOrder(key)
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.order = append(c.order, key)

	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// GetOrLoad returns the cached value or stores the result of load.
// Errors are not cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func(K) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(key)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *Cache[K, V]) Delete(key K) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.removeOrder(key)
}

func (c *Cache[K, V]) Clear() {
	c.entries = make(map[K]entry[V])
	c.order = nil
}

// Len counts stored entries, including expired ones not yet read.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

func (c *Cache[K, V]) expired(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl
}

func (c *Cache[K, V]) removeOrder(key K) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
