package gitbot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectCacheSetGet(t *testing.T) {
	cache := NewObjectCache(4, time.Minute)

	val := map[string]any{"login": "octocat"}
	key := CacheKey("getUser", "octocat")
	cache.Set(key, val)

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, val, got)

	_, ok = cache.Get(CacheKey("getUser", "other"))
	assert.False(t, ok)
}

func TestObjectCacheExpiry(t *testing.T) {
	cache := NewObjectCache(4, 50*time.Millisecond)

	key := CacheKey("getRepo", "octocat/hello-world")
	cache.Set(key, []string{"a", "b"})

	_, ok := cache.Get(key)
	require.True(t, ok)

	time.Sleep(75 * time.Millisecond)

	_, ok = cache.Get(key)
	assert.False(t, ok, "expired entry should not be returned")
	assert.Equal(t, 0, cache.Len())
}

func TestObjectCacheEvictsOldest(t *testing.T) {
	cache := NewObjectCache(3, time.Minute)

	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("op:%d", i), []int{i})
	}
	require.Equal(t, 3, cache.Len())

	cache.Set("op:3", []int{3})

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get("op:0")
	assert.False(t, ok, "oldest entry should be evicted")
	for i := 1; i <= 3; i++ {
		_, ok = cache.Get(fmt.Sprintf("op:%d", i))
		assert.True(t, ok)
	}
}

func TestObjectCacheRefreshMovesToBack(t *testing.T) {
	cache := NewObjectCache(2, time.Minute)

	cache.Set("op:a", []int{1})
	cache.Set("op:b", []int{2})
	// re-set moves op:a to the back of the eviction order
	cache.Set("op:a", []int{3})
	cache.Set("op:c", []int{4})

	_, ok := cache.Get("op:b")
	assert.False(t, ok)
	got, ok := cache.Get("op:a")
	require.True(t, ok)
	assert.Equal(t, []int{3}, got)
}

func TestObjectCacheRejectsNonContainers(t *testing.T) {
	cache := NewObjectCache(4, time.Minute)

	type result struct{ Name string }

	testCases := []struct {
		name      string
		value     any
		cacheable bool
	}{
		{"nil", nil, false},
		{"string", "hello", false},
		{"int", 42, false},
		{"bool", true, false},
		{"struct value", result{Name: "x"}, false},
		{"nil slice", []string(nil), false},
		{"nil map", map[string]int(nil), false},
		{"nil pointer", (*result)(nil), false},
		{"map", map[string]int{"a": 1}, true},
		{"slice", []string{"a"}, true},
		{"struct pointer", &result{Name: "x"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache.Set(tc.name, tc.value)
			_, ok := cache.Get(tc.name)
			assert.Equal(t, tc.cacheable, ok)
		})
	}
}

func TestObjectCacheStats(t *testing.T) {
	cache := NewObjectCache(8, time.Minute)

	cache.Set("op:a", []int{1})
	_, _ = cache.Get("op:a")
	_, _ = cache.Get("op:missing")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 8, stats.MaxSize)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
