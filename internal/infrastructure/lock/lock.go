// Package lock serializes work per key, either inside the process or across replicas through Redis.
package lock

import (
	"context"
	"sync"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// Locker runs fn while holding the lock named key. Waiting for the lock honours ctx.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// LocalLocker keeps one semaphore per key. Keys are never released; the key space is the set of
// channels, which is small and bounded.
type LocalLocker struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sems: make(map[string]chan struct{})}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	sem := l.semaphore(key)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, ctx.Err(), "waiting for lock "+key)
	}
	defer func() { <-sem }()
	return fn()
}

func (l *LocalLocker) semaphore(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sems[key]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[key] = sem
	}
	return sem
}
