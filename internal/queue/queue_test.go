package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PopOrder(t *testing.T) {
	q := New[int]()
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(1)
	q.Push(2)
	assert.Equal(t, 2, q.Len())

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopAllDrainsInOrder(t *testing.T) {
	q := New[string]()
	assert.Nil(t, q.PopAll())

	q.Push("a")
	q.Push("b")
	q.Push("c")
	assert.Equal(t, []string{"a", "b", "c"}, q.PopAll())
	assert.Nil(t, q.PopAll())

	q.Push("d")
	assert.Equal(t, []string{"d"}, q.PopAll())
}

func TestQueue_WaitWakesOnPush(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan []int)
	go func() {
		batch, err := q.Wait(ctx)
		assert.NoError(t, err)
		done <- batch
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case batch := <-done:
		assert.Equal(t, []int{42}, batch)
	case <-ctx.Done():
		t.Fatal("Wait did not return after Push")
	}
}

func TestQueue_WaitReturnsBacklogImmediately(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)

	batch, err := q.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, batch)
}

func TestQueue_WaitHonorsContext(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New[int]()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base*perProducer + i)
			}
		}(p)
	}

	received := 0
	lastSeen := map[int]int{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for received < producers*perProducer {
		batch, err := q.Wait(ctx)
		require.NoError(t, err)
		for _, v := range batch {
			producer := v / perProducer
			if prev, ok := lastSeen[producer]; ok {
				assert.Greater(t, v, prev, "per-producer order must be preserved")
			}
			lastSeen[producer] = v
		}
		received += len(batch)
	}
	wg.Wait()
	assert.Equal(t, producers*perProducer, received)
}
