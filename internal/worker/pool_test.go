package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRunsAllTasksBeforeStop(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 3, QueueSize: 4}, zerolog.Nop())
	pool.Start(context.Background())

	var done atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(context.Background(), Task{Name: "count", Run: func(context.Context) error {
			done.Add(1)
			return nil
		}}))
	}

	assert.True(t, pool.Stop(5*time.Second))
	assert.Equal(t, int32(20), done.Load())
}

func TestPoolSurvivesFailingTasks(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 1}, zerolog.Nop())
	pool.Start(context.Background())

	var done atomic.Int32
	require.NoError(t, pool.Submit(context.Background(), Task{Name: "fails", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, pool.Submit(context.Background(), Task{Name: "panics", Run: func(context.Context) error {
		panic("bad update")
	}}))
	require.NoError(t, pool.Submit(context.Background(), Task{Name: "ok", Run: func(context.Context) error {
		done.Add(1)
		return nil
	}}))

	assert.True(t, pool.Stop(5*time.Second))
	assert.Equal(t, int32(1), done.Load())
}

func TestPoolTaskTimeout(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 1, TaskTimeout: 20 * time.Millisecond}, zerolog.Nop())
	pool.Start(context.Background())

	result := make(chan error, 1)
	require.NoError(t, pool.Submit(context.Background(), Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		result <- ctx.Err()
		return ctx.Err()
	}}))

	assert.ErrorIs(t, <-result, context.DeadlineExceeded)
	assert.True(t, pool.Stop(time.Second))
}

func TestPoolRejectsAfterStop(t *testing.T) {
	pool := NewPool(Config{WorkerCount: 2}, zerolog.Nop())
	pool.Start(context.Background())
	assert.True(t, pool.Stop(time.Second))
	assert.True(t, pool.Stop(time.Second))

	err := pool.Submit(context.Background(), Task{Name: "late", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(Config{WorkerCount: 2}, zerolog.Nop())
	pool.Start(ctx)
	cancel()

	assert.True(t, pool.Stop(time.Second))
}
