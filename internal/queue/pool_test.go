package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_RoundTrip(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)

	want := ChargeJob{EventID: 7, UserID: 3, EnqueuedAt: time.Now()}
	require.NoError(t, q.Enqueue(ctx, want))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.EventID, got.EventID)
	assert.Equal(t, want.UserID, got.UserID)
}

func TestMemoryQueue_DequeueHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	q := NewMemoryQueue(1)
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ProcessesAllJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(16)
	var mu sync.Mutex
	seen := make(map[uint]int)

	pool := NewPool(q, func(_ context.Context, job ChargeJob) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.UserID]++
		if len(seen) == 5 {
			cancel()
		}
		return nil
	}, 3)

	for i := uint(1); i <= 5; i++ {
		require.NoError(t, q.Enqueue(ctx, ChargeJob{EventID: 1, UserID: i}))
	}

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 5)
	for user, count := range seen {
		assert.Equal(t, 1, count, "user %d handled more than once", user)
	}
}

func TestPool_KeepsRunningAfterHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue(4)
	var mu sync.Mutex
	var handled []uint

	pool := NewPool(q, func(_ context.Context, job ChargeJob) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, job.UserID)
		if len(handled) == 2 {
			cancel()
		}
		if job.UserID == 1 {
			return errors.New("charge declined")
		}
		return nil
	}, 1)

	require.NoError(t, q.Enqueue(ctx, ChargeJob{EventID: 1, UserID: 1}))
	require.NoError(t, q.Enqueue(ctx, ChargeJob{EventID: 1, UserID: 2}))

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint{1, 2}, handled, "a failing job must not stop the worker")
}
