package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const chargeJobsKey = "community_capital:charge_jobs"

// RedisQueue is a Redis-list-backed Queue shared between the API server
// and the worker processes.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue pushes the job onto the shared list.
func (q *RedisQueue) Enqueue(ctx context.Context, job ChargeJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, chargeJobsKey, data).Err()
}

// Dequeue blocks on the list with a short poll timeout so context
// cancellation is noticed promptly.
func (q *RedisQueue) Dequeue(ctx context.Context) (*ChargeJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, 5*time.Second, chargeJobsKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}

		// BRPop returns [key, value].
		var job ChargeJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, err
		}
		return &job, nil
	}
}
