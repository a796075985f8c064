package session

import (
	"sync"

	"github.com/roach88/liftsync/internal/fleet"
)

// Source tells where a snapshot came from.
type Source int

const (
	// SourcePush is a frame pushed over the WebSocket.
	SourcePush Source = iota + 1
	// SourceStatus is the cold-start GET /status answer.
	SourceStatus
)

// String returns a log-friendly name.
func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourceStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Event is one snapshot waiting to be applied.
type Event struct {
	Source   Source
	Snapshot fleet.Snapshot
}

// eventQueue is an unbounded FIFO of snapshots waiting for the Run loop.
// Connection readers enqueue without ever blocking on a slow apply.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	// ready holds at most one pending wake-up and is closed with the
	// queue.
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

// Enqueue appends e. It returns false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the oldest event, if any.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events[0] = Event{}
	q.events = q.events[1:]
	if len(q.events) == 0 {
		q.events = nil
	}
	return e, true
}

// Wait fires after an Enqueue, or stays readable once the queue is closed.
// Several enqueues may share one wake-up.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Done reports whether the queue is closed and empty.
func (q *eventQueue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

// Close rejects further events. Events already queued can still be
// dequeued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ready)
	}
}
