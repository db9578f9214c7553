package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	c := newQueryCache(10, time.Minute)
	c.put("q", []Result{{Name: "a"}})

	got, ok := c.get("q")
	require.True(t, ok)
	assert.Equal(t, "a", got[0].Name)

	_, ok = c.get("other")
	assert.False(t, ok)
}

func TestCacheEvictsLRUOnOverflow(t *testing.T) {
	c := newQueryCache(3, time.Minute)
	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("q%d", i), nil)
	}

	// Touch q0 so q1 becomes the LRU.
	_, ok := c.get("q0")
	require.True(t, ok)

	c.put("q3", nil)
	assert.Equal(t, 3, c.len())

	_, ok = c.get("q1")
	assert.False(t, ok, "least recently used entry evicted")
	_, ok = c.get("q0")
	assert.True(t, ok)
	_, ok = c.get("q3")
	assert.True(t, ok)
}

func TestCacheTTLExpiryIsLazy(t *testing.T) {
	c := newQueryCache(10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.put("q", []Result{{Name: "a"}})

	now = now.Add(30 * time.Second)
	_, ok := c.get("q")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.get("q")
	assert.False(t, ok, "expired entry treated as miss")
	assert.Equal(t, 0, c.len(), "expired entry removed at lookup")
}

func TestCacheReplacementRefreshesAge(t *testing.T) {
	c := newQueryCache(10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.put("q", []Result{{Name: "old"}})
	now = now.Add(50 * time.Second)
	c.put("q", []Result{{Name: "new"}})

	now = now.Add(50 * time.Second) // 100s after first insert, 50s after refresh
	got, ok := c.get("q")
	require.True(t, ok)
	assert.Equal(t, "new", got[0].Name)
}
