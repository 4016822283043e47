package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(maxItems int) *Cache {
	c := New(Config{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Hour, // keep the background loop out of the way
		MaxItems:        maxItems,
	})
	return c
}

func TestCacheGetSet(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Set("k", 42)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestCacheExpiry(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	c.SetWithTTL("k", "v", 5*time.Millisecond)
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestCacheDeletePrefix(t *testing.T) {
	c := newTestCache(0)
	defer c.Close()

	c.Set("context-stats:1:page", "a")
	c.Set("context-stats:1:other", "b")
	c.Set("context-stats:2:page", "c")

	c.DeletePrefix("context-stats:1:")

	_, ok := c.Get("context-stats:1:page")
	require.False(t, ok)
	_, ok = c.Get("context-stats:2:page")
	require.True(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestCacheMaxItems(t *testing.T) {
	c := newTestCache(2)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// The cap holds; something was evicted to make room.
	require.LessOrEqual(t, c.Len(), 2)
	_, ok := c.Get("c")
	require.True(t, ok)
}

func TestCacheOnEviction(t *testing.T) {
	var evicted []string
	c := New(Config{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Hour,
		OnEviction: func(key string, _ any) {
			evicted = append(evicted, key)
		},
	})
	defer c.Close()

	c.Set("k", 1)
	c.Delete("k")
	require.Equal(t, []string{"k"}, evicted)
}
