package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// Task is one unit of background work, typically a single Telegram update.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Worker pulls tasks from the pool queue until the queue closes or ctx is done.
type Worker struct {
	id          int
	tasks       <-chan Task
	taskTimeout time.Duration
	instr       *instrumenter
	log         zerolog.Logger
}

func NewWorker(id int, tasks <-chan Task, taskTimeout time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		id:          id,
		tasks:       tasks,
		taskTimeout: taskTimeout,
		instr:       newInstrumenter(),
		log:         log.With().Int("worker_id", id).Str("component", "worker").Logger(),
	}
}

// Start processes tasks until the queue is closed and drained, or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Debug().Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("worker stopped by context")
			return
		case task, ok := <-w.tasks:
			if !ok {
				w.log.Debug().Msg("worker stopped")
				return
			}
			w.process(ctx, task)
		}
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	taskCtx := ctx
	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, w.taskTimeout)
		defer cancel()
	}

	start := time.Now()
	err := w.instr.run(taskCtx, w.id, task, func(ctx context.Context) error {
		return w.safeRun(ctx, task)
	})
	duration := time.Since(start)
	if err != nil {
		var platformErr *platformerrors.PlatformError
		if errors.As(err, &platformErr) {
			platformerrors.LogError(w.log.With().Str("task", task.Name).Dur("duration", duration).Logger(), platformErr)
			return
		}
		w.log.Error().Err(err).Str("task", task.Name).Dur("duration", duration).Msg("task failed")
		return
	}
	w.log.Debug().Str("task", task.Name).Dur("duration", duration).Msg("task completed")
}

func (w *Worker) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Run(ctx)
}
