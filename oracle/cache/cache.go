// Package cache implements the Cache component: a TTL- and
// capacity-bounded store of aggregated publish results, keyed by
// "price:<ASSET>".
package cache

import (
	"sync"
	"time"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

const (
	// DefaultCapacity is the maximum number of entries held before the
	// oldest (by CachedAt) is evicted to make room for a new one.
	DefaultCapacity = 100

	// DefaultTTL is how long an entry remains servable after being set.
	DefaultTTL = 30 * time.Second
)

// Entry is one cached aggregated price, along with the bookkeeping needed
// to expire and evict it.
type Entry struct {
	Price    types.AggregatedPrice
	CachedAt time.Time
}

// Stats is a point-in-time snapshot of cache activity counters.
type Stats struct {
	Size    int
	Hits    int64
	Misses  int64
	Evicted int64
}

// Cache is a TTL- and capacity-bounded map of asset to its last aggregated
// price.
type Cache struct {
	mtx      sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	entries map[string]Entry
	hits    int64
	misses  int64
	evicted int64
}

// Config configures a Cache. A zero Capacity falls back to
// DefaultCapacity. TTL of 0 is a legal, meaningful value: entries expire
// immediately. TTL is left unset, and falls back to DefaultTTL, only when
// negative.
type Config struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time
}

// New constructs a Cache.
func New(cfg Config) *Cache {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		entries:  make(map[string]Entry),
	}
}

func key(asset string) string {
	return "price:" + types.CanonicalizeAsset(asset)
}

// Get returns the cached price for asset, if present and not expired.
func (c *Cache) Get(asset string) (types.AggregatedPrice, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	entry, ok := c.entries[key(asset)]
	if !ok || c.expired(entry) {
		c.misses++
		return types.AggregatedPrice{}, false
	}
	c.hits++
	return entry.Price, true
}

// Has reports whether asset has a live (non-expired) entry, without
// affecting hit/miss counters.
func (c *Cache) Has(asset string) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	entry, ok := c.entries[key(asset)]
	return ok && !c.expired(entry)
}

// Set stores price, evicting the oldest entry first if the cache is at
// capacity and the asset is not already present.
func (c *Cache) Set(price types.AggregatedPrice) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	k := key(price.Asset)
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[k] = Entry{Price: price, CachedAt: c.now()}
}

// Clear removes asset's entry, if any.
func (c *Cache) Clear(asset string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.entries, key(asset))
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.entries = make(map[string]Entry)
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache) Cleanup() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	removed := 0
	for k, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache's current size and running
// counters.
func (c *Cache) Stats() Stats {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return Stats{
		Size:    len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
	}
}

func (c *Cache) expired(entry Entry) bool {
	return c.now().Sub(entry.CachedAt) >= c.ttl
}

// evictOldestLocked removes the entry with the smallest CachedAt. Must be
// called with mtx held.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true

	for k, entry := range c.entries {
		if first || entry.CachedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, entry.CachedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.evicted++
	}
}
