// ABOUTME: Thread-safe TTL cache for upstream response bodies.
// ABOUTME: Used by the HubSpot client to serve repeated ticket listings without a round trip.

package cache

import (
	"container/list"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type entry struct {
	value    []byte
	storedAt time.Time
	element  *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited map from string keys to
// byte slices. A doubly-linked list keeps insertion order for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	items   map[string]*entry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the specified TTL and maximum size.
// A background goroutine periodically sweeps expired entries until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		items:   make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns a copy of the value stored under key if it is present and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) >= c.ttl {
		c.removeLocked(key, e)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Set stores value under key. Existing keys are refreshed and moved to the
// back of the eviction order; when full the oldest entry is evicted.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	stored := append([]byte(nil), value...)

	if e, exists := c.items[key]; exists {
		e.value = stored
		e.storedAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = &entry{
		value:    stored,
		storedAt: now,
		element:  c.order.PushBack(key),
	}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeLocked(key, e)
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry)
	c.order.Init()
}

// Len returns the number of stored entries, including ones that have expired
// but not yet been swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Must be called with mu held.
func (c *Cache) removeLocked(key string, e *entry) {
	c.order.Remove(e.element)
	delete(c.items, key)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.items, key)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired drops all entries older than the TTL.
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.items {
		if now.Sub(e.storedAt) >= c.ttl {
			c.removeLocked(key, e)
		}
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
