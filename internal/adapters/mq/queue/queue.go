// Package queue holds score upserts waiting to be delivered to the session store.
//
// Enqueue never blocks the caller: when the queue is full or closed the upsert
// is dropped and counted. A dropped push is repaired by the next keystroke or
// poll cycle.
package queue

import (
	"context"
	"sync"

	"github.com/okian/rally/internal/domain/types"
	"github.com/okian/rally/pkg/metrics"
)

// DefaultCapacity bounds the outbox when no capacity is configured.
const DefaultCapacity = 256

// Event is the payload flowing through the queue.
type Event = types.ScoreUpsert

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an upsert. Returns false if it was dropped.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns a channel that receives upserts in enqueue order.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the number of queued upserts.
	Len(ctx context.Context) int

	// Close stops accepting upserts. Queued ones can still be dequeued.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateOutboxCapacity(q.capacity)
	metrics.UpdateOutboxSize(0)
	return q
}

// Enqueue adds an upsert to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordOutboxDropped("closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordOutboxDropped("context_cancelled")
		return false
	default:
	}

	select {
	case q.events <- e:
		metrics.UpdateOutboxSize(len(q.events))
		return true
	default:
		metrics.RecordOutboxDropped("full")
		return false
	}
}

// Dequeue returns a channel that will receive upserts as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for e := range q.events {
			select {
			case out <- e:
				metrics.UpdateOutboxSize(len(q.events))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued upserts.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.events)
	metrics.UpdateOutboxSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
