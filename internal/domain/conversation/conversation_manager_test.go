package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

type memoryStore struct {
	mu      sync.Mutex
	turns   map[Key][]Turn
	failAll bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{turns: make(map[Key][]Turn)}
}

func (s *memoryStore) Append(_ context.Context, key Key, turn Turn, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store down")
	}
	turns := append(s.turns[key], turn)
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	s.turns[key] = turns
	return nil
}

func (s *memoryStore) Load(_ context.Context, key Key, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("store down")
	}
	turns := s.turns[key]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *memoryStore) Clear(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, key)
	return nil
}

func texts(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Text
	}
	return out
}

func TestAppendKeepsMostRecentTurns(t *testing.T) {
	ctx := context.Background()
	const limit = 5
	m := NewManager(limit, nil, zerolog.Nop())
	key := KeyFor(100, 100)

	for i := 0; i < limit+3; i++ {
		require.NoError(t, m.Append(ctx, key, RoleUser, fmt.Sprintf("m%d", i)))
	}

	got := m.GetContext(ctx, key)
	assert.Equal(t, []string{"m3", "m4", "m5", "m6", "m7"}, texts(got))
}

func TestAppendIgnoresBlankText(t *testing.T) {
	ctx := context.Background()
	m := NewManager(3, nil, zerolog.Nop())

	require.NoError(t, m.Append(ctx, "c", RoleUser, "   "))
	assert.Empty(t, m.GetContext(ctx, "c"))

	err := m.Append(ctx, "c", Role("tool"), "hi")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(3, nil, zerolog.Nop())

	require.NoError(t, m.Clear(ctx, "never-seen"))
	assert.Empty(t, m.GetContext(ctx, "never-seen"))

	require.NoError(t, m.Append(ctx, "c", RoleUser, "hello"))
	require.NoError(t, m.Clear(ctx, "c"))
	require.NoError(t, m.Clear(ctx, "c"))
	assert.Empty(t, m.GetContext(ctx, "c"))
}

func TestIdleKeysAreNotRetained(t *testing.T) {
	ctx := context.Background()
	for _, store := range []Store{nil, newMemoryStore()} {
		m := NewManager(3, store, zerolog.Nop())

		for i := 0; i < 100; i++ {
			key := Key(fmt.Sprintf("stranger-%d", i))
			assert.Empty(t, m.GetContext(ctx, key))
			assert.Zero(t, m.TurnCount(ctx, key))
			require.NoError(t, m.Clear(ctx, key))
		}
		assert.Zero(t, m.Len())

		require.NoError(t, m.Append(ctx, "c", RoleUser, "hello"))
		assert.Equal(t, 1, m.TurnCount(ctx, "c"))
		assert.Equal(t, 1, m.Len())

		require.NoError(t, m.Clear(ctx, "c"))
		assert.Zero(t, m.Len())
		require.NoError(t, m.Append(ctx, "c", RoleUser, "again"))
		assert.Equal(t, []string{"again"}, texts(m.GetContext(ctx, "c")))
	}
}

func TestGetContextReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewManager(3, nil, zerolog.Nop())
	require.NoError(t, m.Append(ctx, "c", RoleUser, "hello"))

	got := m.GetContext(ctx, "c")
	got[0].Text = "mutated"

	assert.Equal(t, "hello", m.GetContext(ctx, "c")[0].Text)
}

func TestConcurrentAppendsAcrossKeys(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	const limit = 20
	m := NewManager(limit, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for k := 0; k < 8; k++ {
		key := Key(fmt.Sprintf("chat-%d", k))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = m.Append(ctx, key, RoleUser, fmt.Sprintf("%d", i))
			}
		}()
	}
	wg.Wait()

	for k := 0; k < 8; k++ {
		turns := m.GetContext(ctx, Key(fmt.Sprintf("chat-%d", k)))
		require.Len(t, turns, limit)
		assert.Equal(t, "30", turns[0].Text)
		assert.Equal(t, "49", turns[limit-1].Text)
	}
	stats := m.Stats()
	assert.Equal(t, 8, stats.Conversations)
	assert.Equal(t, 8*limit, stats.Turns)
}

func TestPersistentHistoryIsHydrated(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	first := NewManager(3, store, zerolog.Nop())
	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, first.Append(ctx, "c", RoleUser, text))
	}

	restarted := NewManager(3, store, zerolog.Nop())
	assert.Equal(t, []string{"b", "c", "d"}, texts(restarted.GetContext(ctx, "c")))

	require.NoError(t, restarted.Clear(ctx, "c"))
	assert.Empty(t, NewManager(3, store, zerolog.Nop()).GetContext(ctx, "c"))
}

func TestStoreFailureDoesNotAffectMemory(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.failAll = true
	m := NewManager(3, store, zerolog.Nop())

	require.NoError(t, m.Append(ctx, "c", RoleUser, "kept"))
	require.NoError(t, m.Append(ctx, "d", RoleUser, "other"))

	assert.Equal(t, []string{"kept"}, texts(m.GetContext(ctx, "c")))
	assert.Equal(t, []string{"other"}, texts(m.GetContext(ctx, "d")))
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, Key("55"), KeyFor(55, 55))
	assert.Equal(t, Key("55"), KeyFor(55, 0))
	assert.Equal(t, Key("-1001:7"), KeyFor(-1001, 7))
}
