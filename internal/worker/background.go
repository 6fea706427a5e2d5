package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Background runs long jobs (an admin-triggered index run) outside the update pool so they
// are not bound by the per-task timeout. Stop cancels every job and waits for them.
type Background struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

func NewBackground(log zerolog.Logger) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "background").Logger(),
	}
}

// Go starts fn in its own goroutine. Jobs started after Stop see a cancelled context.
func (b *Background) Go(name string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().Str("job", name).Interface("panic", r).Msg("background job panicked")
			}
		}()
		start := time.Now()
		b.log.Debug().Str("job", name).Msg("background job started")
		fn(b.ctx)
		b.log.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("background job finished")
	}()
}

// Stop cancels running jobs and waits up to timeout for them to return.
func (b *Background) Stop(timeout time.Duration) bool {
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		b.log.Warn().Msg("background jobs did not finish before timeout")
		return false
	}
}
