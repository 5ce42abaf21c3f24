package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed is returned by Enqueue and Dequeue after Close.
var ErrQueueClosed = errors.New("queue closed")

// Job describes one model download request.
type Job struct {
	// ID identifies the job for API responses and logs.
	ID string
	// ModelName keys the progress records produced while the job runs.
	ModelName string
	// URLs are fetched sequentially into the destination directory.
	URLs []string
}

// Queue is a bounded in-memory job queue with context-aware operations.
// Close never closes the job channel, so an Enqueue racing shutdown fails
// with ErrQueueClosed instead of panicking.
type Queue struct {
	ch        chan Job
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch:   make(chan Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends or the
// queue is closed.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation. After Close it
// keeps draining buffered jobs and returns ErrQueueClosed once empty.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job := <-q.ch:
		return job, nil
	case <-q.done:
		select {
		case job := <-q.ch:
			return job, nil
		default:
			return Job{}, ErrQueueClosed
		}
	}
}

// Close marks the queue closed for shutdown. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
