package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(id string) request {
	return request{id: id, reply: make(chan result, 1)}
}

func TestRequestQueue_EnqueueDequeue(t *testing.T) {
	q := newRequestQueue()

	ok := q.Enqueue(newRequest("req-1"))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "req-1", got.id)
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()

	for _, id := range []string{"A", "B", "C"} {
		q.Enqueue(newRequest(id))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.id)
	}
}

func TestRequestQueue_TryDequeue_Empty(t *testing.T) {
	q := newRequestQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRequestQueue_WaitSignalsEnqueue(t *testing.T) {
	q := newRequestQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(newRequest("req-late"))
	}()

	select {
	case <-q.Wait():
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, "req-late", got.id)
	case <-time.After(time.Second):
		t.Fatal("Wait did not signal")
	}
}

func TestRequestQueue_Close_WakesWaiter(t *testing.T) {
	q := newRequestQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
		assert.True(t, q.Closed())
	case <-time.After(100 * time.Millisecond):
		t.Fatal("waiter did not wake after close")
	}
}

func TestRequestQueue_Enqueue_AfterClose(t *testing.T) {
	q := newRequestQueue()
	q.Close()
	q.Close() // second close is a no-op

	ok := q.Enqueue(newRequest("req-after-close"))
	assert.False(t, ok, "enqueue after close should return false")
}

func TestRequestQueue_Drain(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(newRequest("a"))
	q.Enqueue(newRequest("b"))
	q.Close()

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "a", drained[0].id)
	assert.Equal(t, "b", drained[1].id)
	assert.Equal(t, 0, q.Len())
}

func TestRequestQueue_Len(t *testing.T) {
	q := newRequestQueue()

	assert.Equal(t, 0, q.Len())

	q.Enqueue(newRequest("1"))
	assert.Equal(t, 1, q.Len())

	q.Enqueue(newRequest("2"))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestRequestQueue_ThreadSafe(t *testing.T) {
	q := newRequestQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(newRequest(fmt.Sprintf("%d-%d", producerID, i)))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[string]bool, producers*perProducer)
	for {
		r, ok := q.TryDequeue()
		if !ok {
			break
		}
		require.False(t, seen[r.id], "request %s dequeued twice", r.id)
		seen[r.id] = true
	}
	assert.Len(t, seen, producers*perProducer)
}
