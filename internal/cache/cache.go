// Package cache memoizes expensive reads for a short time. Concurrent misses
// for the same key share one load.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	val     any
	expires time.Time
}

// Cache is a TTL memo keyed by string. A zero TTL disables caching but
// still collapses concurrent loads.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]entry
	gen     uint64
}

// New returns a cache whose entries live for ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// Invalidate drops every entry. Loads already in flight are not stored.
func (c *Cache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gen++
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.val, true
}

// Get returns the cached value for key or calls load to fill it. Errors are
// never cached. A nil cache always calls load.
func Get[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}
	if v, ok := c.lookup(key); ok {
		return v.(T), nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.ttl > 0 && c.gen == gen {
			c.entries[key] = entry{val: val, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
