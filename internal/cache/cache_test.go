// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "quota:engine", []byte(`{"limit":5}`), time.Minute)

	val, found := c.Get(ctx, "quota:engine")
	if !found {
		t.Fatal("expected value to be found")
	}
	if string(val) != `{"limit":5}` {
		t.Errorf("unexpected value: %s", val)
	}

	stats := c.Stats()
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestMemoryCache_GetMissing(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	if _, found := c.Get(ctx, "nonexistent"); found {
		t.Error("expected value to not be found")
	}

	if stats := c.Stats(); stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "k", []byte("v"), -time.Second)

	if _, found := c.Get(ctx, "k"); found {
		t.Error("expected expired value to be a miss")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")

	if _, found := c.Get(ctx, "k"); found {
		t.Error("expected deleted value to be gone")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)
	c.Clear(ctx)

	if stats := c.Stats(); stats.CurrentSize != 0 {
		t.Errorf("expected empty cache, got %d entries", stats.CurrentSize)
	}
}

func TestMemoryCache_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0).(*memoryCache)

	c.Set(ctx, "fresh", []byte("1"), time.Minute)
	c.Set(ctx, "stale", []byte("2"), -time.Second)

	if n := c.deleteExpired(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("expected eviction counter 1, got %d", stats.Evictions)
	}
	if stats.CurrentSize != 1 {
		t.Errorf("expected 1 remaining entry, got %d", stats.CurrentSize)
	}
}

func TestMemoryCache_StopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Millisecond).(*memoryCache)
	c.Stop()
	c.Stop()
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoOpCache()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, found := c.Get(ctx, "k"); found {
		t.Error("noop cache must never return values")
	}
	if stats := c.Stats(); stats != (Stats{}) {
		t.Errorf("noop cache must report zero stats, got %+v", stats)
	}
}
