package media

import (
	"fmt"
	"testing"

	"github.com/matheus3301/wppbridge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEvictsEarliestInserted(t *testing.T) {
	c := NewCache(3)
	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("m%d", i), store.Media{Mime: "image/jpeg"})
	}

	// Reads do not refresh position.
	_, ok := c.Get("m1")
	require.True(t, ok)

	c.Put("m4", store.Media{Mime: "image/png"})

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("m1")
	assert.False(t, ok, "m1 should have been evicted")
	for _, id := range []string{"m2", "m3", "m4"} {
		_, ok := c.Get(id)
		assert.True(t, ok, id)
	}
}

func TestCacheNeverExceedsBound(t *testing.T) {
	c := NewCache(5)
	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("m%d", i), store.Media{})
		assert.LessOrEqual(t, c.Len(), 5)
	}
	_, ok := c.Get("m44")
	assert.False(t, ok)
	_, ok = c.Get("m45")
	assert.True(t, ok)
}

func TestCacheReplaceKeepsPosition(t *testing.T) {
	c := NewCache(2)
	c.Put("a", store.Media{Mime: "x"})
	c.Put("b", store.Media{})
	c.Put("a", store.Media{Mime: "y"})
	c.Put("c", store.Media{})

	_, ok := c.Get("a")
	assert.False(t, ok, "a was inserted first and must go first")
	got, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "", got.Mime)
}

func TestNewCacheDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewCache(0).Capacity())
}
