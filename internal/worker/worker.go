package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue   chan Task
	wg          sync.WaitGroup
	mu          sync.RWMutex // guards isClosing and the close of taskQueue
	isClosing   bool
	taskTimeout time.Duration
	dropped     atomic.Int64
}

func NewWorkerPool(size, queueSize int, taskTimeout time.Duration) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1000
	}
	wp := &WorkerPool{
		taskQueue:   make(chan Task, queueSize),
		taskTimeout: taskTimeout,
	}

	// Start the workers
	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task Task) {
	ctx := context.Background()
	if wp.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.taskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("worker task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		log.Warn().Err(err).Msg("worker task failed")
	}
}

// Submit queues t without blocking. It reports false when the task was
// dropped because the pool is closing or the queue is full.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.isClosing {
		log.Warn().Msg("task submitted during shutdown, dropping")
		wp.dropped.Add(1)
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		log.Warn().Msg("task queue full, dropping task")
		wp.dropped.Add(1)
		return false
	}
}

func (wp *WorkerPool) Dropped() int64 {
	return wp.dropped.Load()
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.isClosing {
		wp.mu.Unlock()
		return
	}
	wp.isClosing = true
	close(wp.taskQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
}
