package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned by Submit after Stop has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool manages a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers     []*Worker
	tasks       chan Task
	workerCount int
	taskTimeout time.Duration
	log         zerolog.Logger
	wg          sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount int
	QueueSize   int
	TaskTimeout time.Duration
}

func NewPool(cfg Config, log zerolog.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.WorkerCount * 16
	}
	return &Pool{
		tasks:       make(chan Task, cfg.QueueSize),
		workerCount: cfg.WorkerCount,
		taskTimeout: cfg.TaskTimeout,
		log:         log.With().Str("component", "worker-pool").Logger(),
	}
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("worker_count", p.workerCount).Msg("starting worker pool")

	p.workers = make([]*Worker, p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		worker := NewWorker(i+1, p.tasks, p.taskTimeout, p.log)
		p.workers[i] = worker

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(worker)
	}
}

// Submit enqueues a task, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth returns the number of tasks waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Stop closes the queue and waits up to timeout for queued tasks to drain. It reports whether
// every worker finished in time.
func (p *Pool) Stop(timeout time.Duration) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return true
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.log.Info().Msg("stopping worker pool")
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped gracefully")
		return true
	case <-time.After(timeout):
		p.log.Warn().Int("queued", len(p.tasks)).Msg("worker pool shutdown timed out")
		return false
	}
}
