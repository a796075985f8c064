package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/fleet"
)

func event(floors int) Event {
	return Event{Source: SourcePush, Snapshot: fleet.Snapshot{TotalFloors: floors}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(event(i)))
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, e.Snapshot.TotalFloors)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(event(1))
	q.Enqueue(event(2))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(event(1))

	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(event(2)), "enqueue after close should fail")
	assert.False(t, q.Done(), "closed but not drained")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Done())

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("Wait should not block after close")
	}
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const numGoroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				q.Enqueue(event(j))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*perGoroutine, q.Len())
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "push", SourcePush.String())
	assert.Equal(t, "status", SourceStatus.String())
	assert.Equal(t, "unknown", Source(0).String())
}
