// Package queue carries charge jobs from the API to the payment workers.
// Jobs are typed; the Redis implementation spans processes, the memory
// implementation backs tests and single-process runs.
package queue

import (
	"context"
	"time"
)

// ChargeJob asks a worker to charge one participant of one event. JobID
// correlates a job's log lines across the enqueueing and processing
// processes.
type ChargeJob struct {
	JobID      string    `json:"job_id"`
	EventID    uint      `json:"event_id"`
	UserID     uint      `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a FIFO job transport. Dequeue blocks until a job arrives or
// the context is canceled.
type Queue interface {
	Enqueue(ctx context.Context, job ChargeJob) error
	Dequeue(ctx context.Context) (*ChargeJob, error)
}
