package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string, string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	_, _ = c.Get("key1") // key2 becomes least recently used
	c.Set("key4", "value4")

	_, found := c.Get("key2")
	assert.False(t, found, "key2 should have been evicted")
	for _, k := range []string{"key1", "key3", "key4"} {
		_, found := c.Get(k)
		assert.True(t, found, "%s should still exist", k)
	}
	assert.Equal(t, 3, c.Size())
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[string, int](10, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	c.Set("c", 3)
	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())

	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLRUCacheDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[string, int](0, time.Hour)
	for i, k := range []string{"a", "b", "c", "d"} {
		c.Set(k, i)
	}
	assert.Equal(t, 4, c.Size(), "non-positive size disables eviction")

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Size())
}

func TestManagerCleanNowAndStop(t *testing.T) {
	c := NewLRUCache[string, int](10, time.Millisecond)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Second)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
