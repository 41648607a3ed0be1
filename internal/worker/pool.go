// Package worker runs classification jobs on a bounded set of goroutines so
// decoding and inference stay off the request-accepting goroutines.
package worker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ewilliams-labs/soundwatch/internal/logging"
)

var (
	ErrQueueFull   = errors.New("worker: queue is full")
	ErrStopped     = errors.New("worker: pool is stopped")
	ErrJobPanicked = errors.New("worker: job panicked")
)

// Job is a unit of work executed by one worker.
type Job func()

// Pool manages a fixed number of workers reading from a bounded queue.
type Pool struct {
	workers int
	jobs    chan Job
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a worker pool with the given worker count and queue size.
func NewPool(workers int, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{workers: workers, jobs: make(chan Job, queueSize)}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.run(id, job)
			}
		}(i)
	}
	logging.Info(logging.CategoryWorker, "started %d workers (queue %d)", p.workers, cap(p.jobs))
}

// Stop rejects new jobs, lets queued ones finish and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info(logging.CategoryWorker, "workers stopped")
}

// Submit queues a job without blocking. It returns ErrQueueFull when every
// slot is taken.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do submits fn and waits for it to finish. A panic in fn is recovered and
// returned as ErrJobPanicked.
func (p *Pool) Do(fn func()) error {
	done := make(chan error, 1)
	if err := p.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error(logging.CategoryWorker, "job panicked: %v", r)
				done <- fmt.Errorf("%w: %v", ErrJobPanicked, r)
			}
		}()
		fn()
		done <- nil
	}); err != nil {
		return err
	}
	return <-done
}

// QueueLen reports how many jobs are waiting for a worker.
func (p *Pool) QueueLen() int {
	return len(p.jobs)
}

// Workers reports the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(logging.CategoryWorker, "worker %d: job panicked: %v", id, r)
		}
	}()
	job()
}
