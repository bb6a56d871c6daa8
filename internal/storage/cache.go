package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache categories. Writers clear the categories their writes can affect.
const (
	CachePages  = "pages"
	CacheFiles  = "files"
	CacheSearch = "search"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// Cache is the process-wide invalidating cache shared by the stores. Entries
// live under a category key so a writer can drop everything its write could
// have staled without touching the rest. Invalidation runs after the write
// transaction commits; the stale window in between is bounded by the TTL.
type Cache struct {
	mu         sync.RWMutex
	categories map[string]map[string]cacheEntry

	maxPerCategory int
	ttl            time.Duration
}

// NewCache initializes a cache bounded to maxPerCategory entries per
// category, each entry valid for ttl.
func NewCache(maxPerCategory int, ttl time.Duration) *Cache {
	return &Cache{
		categories:     make(map[string]map[string]cacheEntry),
		maxPerCategory: maxPerCategory,
		ttl:            ttl,
	}
}

// Get returns the cached value for key within category, if present and not
// expired.
func (c *Cache) Get(category, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.categories[category][key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value. When the category exceeds its size bound it is reset
// wholesale rather than evicted entry by entry.
func (c *Cache) Set(category, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.categories[category]
	if entries == nil || len(entries) >= c.maxPerCategory {
		entries = make(map[string]cacheEntry)
		c.categories[category] = entries
	}
	entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}

// ClearCategory drops every entry in one category.
func (c *Cache) ClearCategory(category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.categories, category)
}

// Clear drops every entry in every category.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = make(map[string]map[string]cacheEntry)
}

// Len reports how many entries a category holds, expired or not.
func (c *Cache) Len(category string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.categories[category])
}

// cacheKey builds a deterministic key from lookup parameters.
func cacheKey(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, "|")
}

// searchCacheKey keys a search result on the case-folded, sorted term list
// plus the fuzzy flag, so equivalent queries share an entry.
func searchCacheKey(terms []string, fuzzy bool) string {
	folded := make([]string, len(terms))
	for i, term := range terms {
		folded[i] = strings.ToLower(term)
	}
	sort.Strings(folded)
	return cacheKey(strings.Join(folded, " "), fuzzy)
}
