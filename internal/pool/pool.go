// Package pool runs batches of independent work on a fixed set of goroutines.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("pool: worker pool closed")

type Task struct {
	Execute func() error
	ID      int
}

type taskExecution struct {
	task   Task
	result chan<- error
}

// WorkerPool executes Tasks on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	taskQueue  chan taskExecution
	wg         sync.WaitGroup
	quit       chan struct{}
	closeMu    sync.RWMutex
	once       sync.Once
	activeJobs atomic.Int64
	totalJobs  atomic.Int64
}

// New starts a pool with the given number of workers (at least one).
func New(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	wp := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan taskExecution, workers*8),
		quit:      make(chan struct{}),
	}
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	return wp
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.workers }

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case execution := <-wp.taskQueue:
			wp.activeJobs.Add(1)
			err := execution.task.Execute()
			wp.activeJobs.Add(-1)
			wp.totalJobs.Add(1)
			execution.result <- err
		case <-wp.quit:
			return
		}
	}
}

// Submit queues task; its error is delivered on result, which must have
// room for it. After Close the task is not run and result receives
// ErrClosed.
func (wp *WorkerPool) Submit(task Task, result chan<- error) {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()
	if wp.closed() {
		result <- ErrClosed
		return
	}
	wp.taskQueue <- taskExecution{task: task, result: result}
}

func (wp *WorkerPool) closed() bool {
	select {
	case <-wp.quit:
		return true
	default:
		return false
	}
}

// ForEach splits [0, n) into chunks and calls fn(lo, hi) for each chunk on
// the pool, returning the first error. With one worker or a single chunk
// fn runs on the calling goroutine.
func (wp *WorkerPool) ForEach(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if wp.closed() {
		return ErrClosed
	}
	if n <= 0 {
		return nil
	}
	chunkSize := max(1, n/(wp.workers*2))
	if wp.workers == 1 || chunkSize >= n {
		return fn(0, n)
	}

	var tasks []Task
	for lo := 0; lo < n; lo += chunkSize {
		lo, hi := lo, min(lo+chunkSize, n)
		tasks = append(tasks, Task{
			ID:      len(tasks),
			Execute: func() error { return fn(lo, hi) },
		})
	}

	results := make(chan error, len(tasks))
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			wp.Submit(task, results)
		}
	}

	var firstErr error
	for i := 0; i < len(tasks); i++ {
		select {
		case err := <-results:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return firstErr
}

// Stats returns the number of running and completed tasks.
func (wp *WorkerPool) Stats() (active int64, total int64) {
	return wp.activeJobs.Load(), wp.totalJobs.Load()
}

// Close stops the workers. Tasks still queued are answered with ErrClosed.
// It is safe to call more than once.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.closeMu.Lock()
		close(wp.quit)
		wp.closeMu.Unlock()
		wp.wg.Wait()
		for {
			select {
			case execution := <-wp.taskQueue:
				execution.result <- ErrClosed
			default:
				return
			}
		}
	})
}
