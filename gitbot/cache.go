package gitbot

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// cacheEntry is a single cached value with its insertion time.
type cacheEntry struct {
	value   any
	addedAt time.Time
}

// ObjectCache is a bounded TTL cache for responses from external services.
// Entries older than maxAge are treated as absent, and when the cache is
// full the oldest entry is evicted to make room.
//
// Only container values (maps, slices, pointers to structs) are admitted.
// Scalar values and nils are silently ignored, so transient lookup
// results that carry no structure never occupy a slot.
type ObjectCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	maxSize int
	maxAge  time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewObjectCache creates an ObjectCache with the given entry limit and
// max entry age. Non-positive arguments fall back to the defaults.
func NewObjectCache(maxSize int, maxAge time.Duration) *ObjectCache {
	if maxSize <= 0 {
		maxSize = DefaultObjectCacheSize
	}
	if maxAge <= 0 {
		maxAge = DefaultObjectCacheMaxAge
	}
	return &ObjectCache{
		entries: make(map[string]cacheEntry, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// CacheKey builds the composite key used by [ObjectCache.Get] and
// [ObjectCache.Set]: the operation name joined with its first argument.
func CacheKey(op string, arg string) string {
	return fmt.Sprintf("%s:%s", op, arg)
}

// Get returns the cached value for key, if present and not expired.
func (c *ObjectCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if time.Since(entry.addedAt) > c.maxAge {
		c.deleteLocked(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.value, true
}

// Set stores value under key if the value is cacheable. Storing an
// existing key refreshes its age and moves it to the back of the
// eviction order.
func (c *ObjectCache) Set(key string, value any) {
	if !cacheable(value) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.deleteLocked(key)
	}
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		c.deleteLocked(c.order[0])
	}
	c.entries[key] = cacheEntry{value: value, addedAt: time.Now()}
	c.order = append(c.order, key)
}

// Delete removes key from the cache if present.
func (c *ObjectCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

func (c *ObjectCache) deleteLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the current number of entries, including any that have
// expired but not yet been evicted.
func (c *ObjectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cache activity counters.
func (c *ObjectCache) Stats() CacheStats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return CacheStats{
		Size:    size,
		MaxSize: c.maxSize,
		MaxAge:  c.maxAge,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// CacheStats is a point-in-time snapshot of an [ObjectCache].
type CacheStats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	MaxAge  time.Duration `json:"max_age"`
	Hits    int64         `json:"hits"`
	Misses  int64         `json:"misses"`
}

func (c CacheStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("size", c.Size),
		slog.Int("max_size", c.MaxSize),
		slog.Duration("max_age", c.MaxAge),
		slog.Int64("hits", c.Hits),
		slog.Int64("misses", c.Misses),
	)
}

// cacheable reports whether v is a container value worth caching.
func cacheable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return !rv.IsNil()
	case reflect.Ptr:
		return !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}
