// Package queue defines the contract for enqueuing and consuming plan
// refresh jobs.
//
// Jobs for the same user are coalesced: a second refresh request while one
// is already pending is absorbed, since regenerating the plan once covers
// every trigger that arrived in the meantime.
package queue

import (
	"context"
	"sync"

	"github.com/kdawg1232/jitter/internal/domain/model"
	"github.com/kdawg1232/jitter/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Job is the payload type flowing through the queue.
type Job = model.RefreshJob

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue. A job for a user with a refresh
	// already pending is coalesced and reported as accepted.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that will receive jobs as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel plus a pending
// set for per-user coalescing.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		pending:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateRefreshQueueDepth(0)

	return q
}

// Enqueue adds a job to the queue, coalescing per user.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if _, dup := q.pending[j.UserID]; dup {
		metrics.RecordRefreshCoalesced()
		return true
	}

	select {
	case q.jobs <- j:
		q.pending[j.UserID] = struct{}{}
		metrics.RecordRefreshEnqueued()
		metrics.UpdateRefreshQueueDepth(len(q.jobs))
		return true
	case <-ctx.Done():
		return false
	default:
		metrics.RecordRefreshError()
		return false // queue is full
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for job := range q.jobs {
			q.mu.Lock()
			delete(q.pending, job.UserID)
			q.mu.Unlock()

			select {
			case out <- job:
				metrics.UpdateRefreshQueueDepth(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.jobs)
	metrics.UpdateRefreshQueueDepth(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	close(q.jobs)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
