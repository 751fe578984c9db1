package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Handler processes one charge job. Errors are logged, not requeued: the
// orchestrator's own retry policy and the reconciler cover recovery.
type Handler func(ctx context.Context, job ChargeJob) error

// Pool runs a fixed number of workers consuming from a Queue.
type Pool struct {
	queue       Queue
	handler     Handler
	concurrency int
}

func NewPool(q Queue, handler Handler, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{queue: q, handler: handler, concurrency: concurrency}
}

// Run blocks until the context is canceled and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.Error("dequeue failed", "worker", worker, "error", err)
			continue
		}

		if err := p.handler(ctx, *job); err != nil {
			slog.Error("charge job failed",
				"worker", worker,
				"job_id", job.JobID,
				"event_id", job.EventID,
				"user_id", job.UserID,
				"error", err)
		}
	}
}
