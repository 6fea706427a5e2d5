package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Turn is one message in a conversation.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Empty reports whether the turn has no usable content.
func (t Turn) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// Key identifies a conversation: a chat, optionally narrowed to one user within it.
type Key string

// KeyFor builds the key for a chat. In private chats userID equals chatID and is omitted.
func KeyFor(chatID, userID int64) Key {
	if userID == 0 || userID == chatID {
		return Key(fmt.Sprintf("%d", chatID))
	}
	return Key(fmt.Sprintf("%d:%d", chatID, userID))
}

// Store is the optional write-through persistence for conversation turns.
type Store interface {
	// Append stores turn and drops all but the newest limit turns of key.
	Append(ctx context.Context, key Key, turn Turn, limit int) error
	// Load returns up to limit most recent turns of key, oldest first.
	Load(ctx context.Context, key Key, limit int) ([]Turn, error)
	Clear(ctx context.Context, key Key) error
}

// Stats summarizes the in-memory state.
type Stats struct {
	Conversations int
	Turns         int
}
