package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSet(t *testing.T) {
	c := New[int, string](2)

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Set(1, "a")
	c.Set(2, "b")
	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	c.Set(1, "A")
	v, _ = c.Get(1)
	assert.Equal(t, "A", v)
	assert.Equal(t, 2, c.Len())
}

func TestCache_EvictsFirstInsertedWithoutGets(t *testing.T) {
	for capacity := 1; capacity <= 8; capacity++ {
		c := New[int, int](capacity)
		for i := 0; i < capacity*3; i++ {
			c.Set(i, i)
			require.LessOrEqual(t, c.Len(), capacity)
		}

		c = New[int, int](capacity)
		for i := 0; i < capacity; i++ {
			c.Set(i, i)
		}
		c.Set(capacity, capacity)
		_, ok := c.Peek(0)
		assert.False(t, ok, "capacity %d: first inserted entry should be evicted", capacity)
		_, ok = c.Peek(1)
		if capacity > 1 {
			assert.True(t, ok, "capacity %d: second entry should survive", capacity)
		}
	}
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, ok := c.Peek("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "c"}, c.Keys())
}

func TestCache_SetCapacityShrinksImmediately(t *testing.T) {
	c := New[int, int](10)
	for i := 0; i < 10; i++ {
		c.Set(i, i)
	}
	c.Get(0)

	c.SetCapacity(3)
	assert.Equal(t, 3, c.Capacity())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []int{8, 9, 0}, c.Keys())

	c.SetCapacity(3)
	assert.Equal(t, 3, c.Len())

	c.SetCapacity(5)
	c.Set(100, 100)
	assert.Equal(t, 4, c.Len())
}

func TestCache_ZeroCapacity(t *testing.T) {
	c := New[int, int](4)
	c.Set(1, 1)
	c.Set(2, 2)

	c.SetCapacity(0)
	assert.Equal(t, 0, c.Len())
	c.Set(3, 3)
	assert.Equal(t, 0, c.Len())

	c.SetCapacity(1)
	c.Set(3, 3)
	assert.Equal(t, 1, c.Len())

	z := New[int, int](0)
	z.Set(1, 1)
	assert.Equal(t, 0, z.Len())
	assert.Equal(t, 0, z.Capacity())
}

func TestCache_ClearAndRemove(t *testing.T) {
	c := New[int, int](3)
	c.Set(1, 1)
	c.Set(2, 2)

	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, c.Capacity())
}
