package ordqueue

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrdQueueReordersArbitrarySendSchedule(t *testing.T) {
	const n = 200
	q, r := New[int](4)

	order := rand.New(rand.NewSource(1)).Perm(n)
	var wg sync.WaitGroup
	for _, idx := range order {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			q.Push(idx, idx*10)
		}(idx)
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	for i := 0; i < n; i++ {
		v, ok := r.Next()
		require.True(t, ok)
		require.Equal(t, i*10, v)
	}
	_, ok := r.Next()
	require.False(t, ok)
}

func TestOrdQueueSingleItem(t *testing.T) {
	q, r := New[string](1)
	q.Push(0, "only")
	q.Close()

	v, ok := r.Next()
	require.True(t, ok)
	require.Equal(t, "only", v)

	_, ok = r.Next()
	require.False(t, ok)
}

func TestOrdQueueClosedEmpty(t *testing.T) {
	q, r := New[int](1)
	q.Close()
	_, ok := r.Next()
	require.False(t, ok)
}
