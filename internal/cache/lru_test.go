package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_PutEvictsTailOnlyWhenFull(t *testing.T) {
	c := NewLRU[string, int](3)

	for i := 0; i < 3; i++ {
		_, evicted := c.Put(fmt.Sprint(i), i)
		assert.False(t, evicted, "no eviction below capacity")
	}
	assert.Equal(t, 3, c.Size())

	ev, evicted := c.Put("3", 3)
	require.True(t, evicted)
	assert.Equal(t, "0", ev.Key)
	assert.Equal(t, 0, ev.Value)
	assert.Equal(t, 3, c.Size())
	assert.False(t, c.Contains("0"))
}

func TestLRU_SizeNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 7, 32} {
		c := NewLRU[int, int](capacity)
		evictions := 0
		for i := 0; i < capacity*5; i++ {
			wasFull := c.Size() == capacity
			_, evicted := c.Put(i, i)
			assert.Equal(t, wasFull, evicted)
			if evicted {
				evictions++
			}
			assert.LessOrEqual(t, c.Size(), capacity)
		}
		assert.Equal(t, capacity*4, evictions)
	}
}

func TestLRU_GetPromotes(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	ev, evicted := c.Put("c", 3)
	require.True(t, evicted)
	assert.Equal(t, "b", ev.Key)
	assert.Equal(t, []string{"c", "a"}, c.Keys())
}

func TestLRU_ContainsAndPeekDoNotPromote(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	assert.True(t, c.Contains("a"))
	v, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	ev, evicted := c.Put("c", 3)
	require.True(t, evicted)
	assert.Equal(t, "a", ev.Key)
}

func TestLRU_UpdateExistingNeverEvicts(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	_, evicted := c.Put("a", 10)
	assert.False(t, evicted)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
}

func TestLRU_GetMissing(t *testing.T) {
	c := NewLRU[string, *int](1)
	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestLRU_ReinsertingEvictedEntryWalksTail(t *testing.T) {
	c := NewLRU[int, string](3)
	c.Put(1, "one")
	c.Put(2, "two")
	c.Put(3, "three")

	// Rejecting an eviction by putting the candidate back surfaces the next tail.
	ev, _ := c.Put(4, "four")
	assert.Equal(t, 1, ev.Key)
	ev, evicted := c.Put(ev.Key, ev.Value)
	require.True(t, evicted)
	assert.Equal(t, 2, ev.Key)
	assert.Equal(t, []int{1, 4, 3}, c.Keys())
}

func TestLRU_Remove(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)

	v, ok := c.Remove("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 0, c.Size())

	_, ok = c.Remove("a")
	assert.False(t, ok)
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[string, int](0)
	assert.Equal(t, 1, c.Capacity())
	c.Put("a", 1)
	_, evicted := c.Put("b", 2)
	assert.True(t, evicted)
}
