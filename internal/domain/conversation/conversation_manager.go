package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// DefaultHistoryLimit is the number of turns kept per conversation.
const DefaultHistoryLimit = 20

// Manager keeps a bounded FIFO of turns per conversation key. Operations on one key are
// serialized by that key's lock; different keys never wait on each other beyond the map lookup.
type Manager struct {
	limit   int
	store   Store
	log     zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
	entries map[Key]*entry
}

type entry struct {
	mu     sync.Mutex
	turns  []Turn
	loaded bool
	// removed is set once the entry left the map; holders must look the key up again.
	removed bool
}

// NewManager creates a manager. store may be nil for a purely in-memory history.
func NewManager(limit int, store Store, log zerolog.Logger) *Manager {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Manager{
		limit:   limit,
		store:   store,
		log:     log.With().Str("component", "conversation").Logger(),
		now:     time.Now,
		entries: make(map[Key]*entry),
	}
}

// Limit returns the per-conversation bound.
func (m *Manager) Limit() int {
	return m.limit
}

// Append adds a turn and evicts the oldest turns beyond the bound. Blank text is a no-op.
func (m *Manager) Append(ctx context.Context, key Key, role Role, text string) error {
	if !role.Valid() {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid conversation role", nil, "d2f4a6c8-e0b1-4d3f-a5c7-e9b1d3f5a7c9", map[string]any{"role": string(role)})
	}
	turn := Turn{Role: role, Text: text, At: m.now().UTC()}
	if turn.Empty() || key == "" {
		return nil
	}

	e := m.acquire(key)
	defer e.mu.Unlock()
	m.hydrate(ctx, key, e)

	e.turns = append(e.turns, turn)
	if overflow := len(e.turns) - m.limit; overflow > 0 {
		kept := make([]Turn, m.limit)
		copy(kept, e.turns[overflow:])
		e.turns = kept
	}

	if m.store != nil {
		if err := m.store.Append(ctx, key, turn, m.limit); err != nil {
			m.log.Warn().Err(err).Str("conversation", string(key)).Msg("failed to persist conversation turn")
		}
	}
	return nil
}

// GetContext returns a copy of the current turns, oldest first. Unknown keys yield an empty slice.
func (m *Manager) GetContext(ctx context.Context, key Key) []Turn {
	e := m.acquire(key)
	defer e.mu.Unlock()
	m.hydrate(ctx, key, e)
	defer m.release(key, e)

	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// TurnCount reports how many turns the conversation currently holds.
func (m *Manager) TurnCount(ctx context.Context, key Key) int {
	e := m.acquire(key)
	defer e.mu.Unlock()
	m.hydrate(ctx, key, e)
	defer m.release(key, e)
	return len(e.turns)
}

// Clear empties the conversation. Clearing an unknown or empty key is a no-op.
func (m *Manager) Clear(ctx context.Context, key Key) error {
	e := m.acquire(key)
	defer e.mu.Unlock()

	e.turns = nil
	e.loaded = true
	if m.store != nil {
		if err := m.store.Clear(ctx, key); err != nil {
			// keep the empty entry so the stale rows are not hydrated again
			m.log.Warn().Err(err).Str("conversation", string(key)).Msg("failed to clear persisted conversation")
			return nil
		}
	}
	m.release(key, e)
	return nil
}

// Stats counts non-empty conversations and their turns.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var stats Stats
	for _, e := range entries {
		e.mu.Lock()
		if n := len(e.turns); n > 0 {
			stats.Conversations++
			stats.Turns += n
		}
		e.mu.Unlock()
	}
	return stats
}

// Len reports how many conversations are held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// acquire returns the live entry for key with its lock held.
func (m *Manager) acquire(key Key) *entry {
	for {
		m.mu.Lock()
		e, ok := m.entries[key]
		if !ok {
			e = &entry{loaded: m.store == nil}
			m.entries[key] = e
		}
		m.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// release drops an empty entry from the map so reads and clears of idle keys leave
// nothing behind. Caller holds e.mu; a later access hydrates the key again.
func (m *Manager) release(key Key, e *entry) {
	if len(e.turns) > 0 {
		return
	}
	e.removed = true
	m.mu.Lock()
	if m.entries[key] == e {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// hydrate loads persisted turns the first time a key is touched. Caller holds e.mu.
func (m *Manager) hydrate(ctx context.Context, key Key, e *entry) {
	if e.loaded {
		return
	}
	e.loaded = true
	turns, err := m.store.Load(ctx, key, m.limit)
	if err != nil {
		m.log.Warn().Err(err).Str("conversation", string(key)).Msg("failed to load persisted conversation")
		return
	}
	e.turns = turns
}
