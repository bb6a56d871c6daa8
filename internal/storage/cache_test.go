package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(10, time.Minute)
	if _, ok := c.Get(CachePages, "k"); ok {
		t.Error("empty cache reported a hit")
	}
	c.Set(CachePages, "k", "v")
	got, ok := c.Get(CachePages, "k")
	if !ok || got != "v" {
		t.Errorf("Get = %v, %v, want v, true", got, ok)
	}
	if _, ok := c.Get(CacheFiles, "k"); ok {
		t.Error("categories are not isolated")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10, 10*time.Millisecond)
	c.Set(CachePages, "k", "v")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(CachePages, "k"); ok {
		t.Error("expired entry served")
	}
}

func TestCacheBoundResetsCategory(t *testing.T) {
	c := NewCache(3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(CachePages, fmt.Sprintf("k%d", i), i)
	}
	if got := c.Len(CachePages); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	c.Set(CachePages, "overflow", true)
	if got := c.Len(CachePages); got != 1 {
		t.Errorf("Len after overflow = %d, want 1", got)
	}
	if _, ok := c.Get(CachePages, "k0"); ok {
		t.Error("old entry survived the reset")
	}
	if _, ok := c.Get(CachePages, "overflow"); !ok {
		t.Error("newest entry missing after the reset")
	}
}

func TestCacheClearCategory(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Set(CachePages, "p", 1)
	c.Set(CacheSearch, "s", 2)
	c.ClearCategory(CacheSearch)
	if _, ok := c.Get(CacheSearch, "s"); ok {
		t.Error("cleared category served an entry")
	}
	if _, ok := c.Get(CachePages, "p"); !ok {
		t.Error("sibling category was cleared too")
	}
	c.Clear()
	if _, ok := c.Get(CachePages, "p"); ok {
		t.Error("Clear left an entry behind")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(100, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n)
			for j := 0; j < 100; j++ {
				c.Set(CachePages, key, j)
				c.Get(CachePages, key)
				if j%10 == 0 {
					c.ClearCategory(CacheSearch)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestSearchCacheKeyNormalizes(t *testing.T) {
	a := searchCacheKey([]string{"Beta", "alpha"}, true)
	b := searchCacheKey([]string{"alpha", "beta"}, true)
	if a != b {
		t.Errorf("equivalent term lists keyed differently: %q vs %q", a, b)
	}
	if searchCacheKey([]string{"alpha"}, true) == searchCacheKey([]string{"alpha"}, false) {
		t.Error("fuzzy flag not part of the key")
	}
}
