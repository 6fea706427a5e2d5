package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBackgroundStopCancelsJobs(t *testing.T) {
	b := NewBackground(zerolog.Nop())
	var cancelled atomic.Bool
	started := make(chan struct{})

	b.Go("wait", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	})
	<-started

	assert.True(t, b.Stop(time.Second))
	assert.True(t, cancelled.Load())
}

func TestBackgroundRecoversPanics(t *testing.T) {
	b := NewBackground(zerolog.Nop())
	b.Go("boom", func(context.Context) { panic("boom") })

	var ran atomic.Bool
	b.Go("after", func(context.Context) { ran.Store(true) })

	assert.True(t, b.Stop(time.Second))
	assert.True(t, ran.Load())
}
