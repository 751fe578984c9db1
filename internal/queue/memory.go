package queue

import (
	"context"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue over a buffered channel.
type MemoryQueue struct {
	jobs chan ChargeJob
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{jobs: make(chan ChargeJob, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job ChargeJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*ChargeJob, error) {
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
