package durability

import (
	"context"
	"fmt"
)

// InlineQueue is the in-process JobQueue realization: a buffered channel
// standing in for a broker, used by cmd/debateworker's standalone mode
// when JobQueueConfig.URL is unset.
type InlineQueue struct {
	jobs chan Job
}

// NewInlineQueue creates an inline queue with the given buffer size.
func NewInlineQueue(bufferSize int) *InlineQueue {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &InlineQueue{jobs: make(chan Job, bufferSize)}
}

// Enqueue submits a job, blocking if the buffer is full or ctx is
// canceled first.
func (q *InlineQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers jobs to handle until ctx is canceled or the channel
// is closed.
func (q *InlineQueue) Consume(ctx context.Context, handle func(context.Context, Job) error) error {
	for {
		select {
		case job, ok := <-q.jobs:
			if !ok {
				return nil
			}
			if err := handle(ctx, job); err != nil {
				return fmt.Errorf("handle job %s: %w", job.DebateID, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting new jobs; in-flight Consume calls drain the
// remaining buffer before returning.
func (q *InlineQueue) Close() error {
	close(q.jobs)
	return nil
}
