package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsTasksBeforeShutdown(t *testing.T) {
	wp := NewWorkerPool(3, 10, time.Second)

	var count atomic.Int32
	for range 10 {
		assert.True(t, wp.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}
	wp.Shutdown()

	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_DropsAfterShutdown(t *testing.T) {
	wp := NewWorkerPool(1, 1, 0)
	wp.Shutdown()
	wp.Shutdown() // idempotent

	assert.False(t, wp.Submit(func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), wp.Dropped())
}

func TestWorkerPool_FailingAndPanickingTasksDoNotKillWorkers(t *testing.T) {
	wp := NewWorkerPool(1, 10, time.Second)

	var ran atomic.Bool
	wp.Submit(func(ctx context.Context) error { return errors.New("nope") })
	wp.Submit(func(ctx context.Context) error { panic("boom") })
	wp.Submit(func(ctx context.Context) error { ran.Store(true); return nil })
	wp.Shutdown()

	assert.True(t, ran.Load())
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	wp := NewWorkerPool(1, 1, 10*time.Millisecond)

	var deadlineHit atomic.Bool
	wp.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		deadlineHit.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})
	wp.Shutdown()

	assert.True(t, deadlineHit.Load())
}

func TestWorkerPool_SubmitRacingShutdown(t *testing.T) {
	for range 50 {
		wp := NewWorkerPool(2, 4, time.Second)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					wp.Submit(func(ctx context.Context) error { return nil })
				}
			}()
		}
		assert.NotPanics(t, wp.Shutdown)
		wg.Wait()
		assert.False(t, wp.Submit(func(ctx context.Context) error { return nil }))
	}
}
