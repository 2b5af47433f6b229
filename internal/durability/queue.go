package durability

import "context"

// Job is one debate run dispatched to a worker.
type Job struct {
	DebateID string
}

// JobQueue decouples debate submission from worker pickup. Two
// realizations share this interface: an in-process inline dispatcher for
// single-process deployments, and an AMQP-backed queue for multi-worker
// deployments, selected by whether JobQueueConfig.URL is configured.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	// Consume delivers jobs to handle until ctx is canceled or handle
	// returns a non-nil error, at which point Consume returns that error.
	Consume(ctx context.Context, handle func(context.Context, Job) error) error
	Close() error
}
