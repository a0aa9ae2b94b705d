// Package dedup implements the bounded, TTL-scoped set of seen message
// fingerprints that the relay (C6) uses to recognize and drop duplicates.
package dedup

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config configures a Cache. Defaults match the spec: a 5 minute TTL and a
// capacity of 10,000 fingerprints.
type Config struct {
	TTL      time.Duration
	Capacity int
	Now      func() time.Time
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{
		TTL:      5 * time.Minute,
		Capacity: 10000,
		Now:      time.Now,
	}
}

type entry struct {
	fingerprint [32]byte
	insertedAt  time.Time
}

// Cache is a bounded set of fingerprints with per-entry insertion time.
// All operations are linearizable under a single mutex; expired entries
// are reaped lazily on access and by a periodic sweep started with Run.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time
	index    map[[32]byte]*list.Element // fingerprint -> node in order
	order    *list.List                 // insertion order, oldest at Front
}

// NewCache constructs a Cache from cfg, filling in zero-valued fields from
// DefaultConfig.
func NewCache(cfg Config) *Cache {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Cache{
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		now:      cfg.Now,
		index:    make(map[[32]byte]*list.Element),
		order:    list.New(),
	}
}

// HasSeen reports whether fp is currently tracked and unexpired. It is
// idempotent and side-effect free for the caller, though it opportunistically
// reaps the single entry it inspects if found expired.
func (c *Cache) HasSeen(fp [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fp]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.remove(el)
		return false
	}
	return true
}

// MarkSeen inserts fp. If fp is already present this is a no-op (its
// insertion time is not refreshed). If inserting pushes the cache over
// capacity, the oldest entry is evicted.
func (c *Cache) MarkSeen(fp [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[fp]; ok {
		if c.expired(el.Value.(*entry)) {
			c.remove(el)
		} else {
			return
		}
	}

	el := c.order.PushBack(&entry{fingerprint: fp, insertedAt: c.now()})
	c.index[fp] = el

	for c.order.Len() > c.capacity {
		c.remove(c.order.Front())
	}
}

// Sweep reaps all expired entries immediately; it is what the periodic
// background sweep calls, and is also exposed for test determinism.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expired(el.Value.(*entry)) {
			c.remove(el)
			removed++
		} else {
			// Insertion order implies expiry order: once we hit a
			// live entry, everything after it is also live.
			break
		}
		el = next
	}
	return removed
}

// Len returns the number of tracked (not necessarily unexpired) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Run starts a periodic sweep goroutine until ctx is canceled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.index, e.fingerprint)
	c.order.Remove(el)
}
