// Package worker drains the outbox, delivering score upserts to the session store.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/rally/internal/adapters/mq/queue"
	"github.com/okian/rally/pkg/logger"
	"github.com/okian/rally/pkg/metrics"
)

const poolShutdownTimeout = 10 * time.Second

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Deliverer sends one upsert to the store.
type Deliverer interface {
	Deliver(ctx context.Context, u Event) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, u Event) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, u Event) error { return f(ctx, u) }

// Queue defines how workers receive upserts.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker delivers upserts until its queue closes or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)
	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	deliverer Deliverer
	name      string

	delivered atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, d Deliverer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		deliverer: d,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop. It returns once the queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.deliver(ctx, e); err != nil {
				w.logger.Warn(ctx, "delivery failed", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once the worker loop has exited.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Delivered returns how many upserts reached the store.
func (w *InMemoryWorker) Delivered() int64 { return w.delivered.Load() }

// Failed returns how many deliveries failed.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) deliver(ctx context.Context, e Event) error {
	if err := w.deliverer.Deliver(ctx, e); err != nil {
		w.failed.Add(1)
		metrics.RecordErrorByComponent("worker", "delivery_error")
		return fmt.Errorf("deliver round %d game %d: %w", e.Round, e.Game, err)
	}
	w.delivered.Add(1)
	return nil
}

// Pool manages the outbox workers. One worker keeps a device's pushes in order.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, d Deliverer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, d, wopts...)
	}
	if len(pool.workers) > 0 {
		pool.logger = pool.workers[0].logger
	}
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Delivered sums delivered upserts across workers.
func (p *Pool) Delivered() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Delivered()
	}
	return n
}

// Shutdown closes the queue, lets workers drain what is already queued and
// forces them to stop when ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
			_ = w.Shutdown(stopCtx)
			stop()
		}
	}
	return nil
}
