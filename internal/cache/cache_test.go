package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_GetPut(t *testing.T) {
	c := NewLRU[string](2, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", "first")
	now = now.Add(30 * time.Second)

	entry, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", entry.Value)
	assert.Equal(t, 30*time.Second, entry.Age)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_Expires(t *testing.T) {
	c := NewLRU[int](4, 20*time.Millisecond)
	c.Put("a", 1)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("https://youtu.be/x"), Key("  https://youtu.be/x "))
	assert.NotEqual(t, Key("https://youtu.be/x"), Key("https://youtu.be/y"))
	assert.NotEqual(t, Key("https://youtu.be/x", "info"), Key("https://youtu.be/x", "formats"))
	assert.Len(t, Key("u"), 64)
}
