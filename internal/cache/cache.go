// SPDX-License-Identifier: MIT

// Package cache provides a small TTL cache used for last-known quota
// snapshots and other boundary responses that are expensive to refetch.
// Values are opaque byte slices; callers own the serialization.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a thread-safe TTL cache.
type Cache interface {
	// Get retrieves a value. The second return is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(ctx context.Context, key string)
	// Clear removes all values.
	Clear(ctx context.Context)
	// Stats returns cache counters.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

// entry is a cached value with its expiration time.
type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// memoryCache is the in-process implementation of Cache.
type memoryCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	stats    Stats
	janitor  *janitor
	stopOnce sync.Once
}

// NewMemoryCache creates an in-memory cache. When cleanupInterval is
// positive a background goroutine evicts expired entries at that cadence;
// call Stop to end it.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
	}

	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.isExpired() {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
	c.stats.Sets++
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes all expired entries and returns how many were
// evicted.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired() {
			delete(c.entries, key)
			count++
		}
	}

	c.stats.Evictions += int64(count)
	return count
}

// Stop ends the background cleanup goroutine. Safe to call more than once.
func (c *memoryCache) Stop() {
	if c.janitor != nil {
		c.stopOnce.Do(func() { close(c.janitor.stop) })
	}
}

// janitor periodically evicts expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noOpCache never stores anything. Used when caching is disabled.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (c *noOpCache) Get(context.Context, string) ([]byte, bool)          { return nil, false }
func (c *noOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (c *noOpCache) Delete(context.Context, string)                     {}
func (c *noOpCache) Clear(context.Context)                              {}
func (c *noOpCache) Stats() Stats                                       { return Stats{} }
