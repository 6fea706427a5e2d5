package channel

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Status is the curation state of a channel. A suggestion is stored as StatusPending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// transitions lists every allowed curation move.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusRejected: {StatusPending},
	StatusApproved: {StatusRejected},
}

// CanTransition reports whether a channel may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Level is the audience level a channel is tagged with.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Channel is a Telegram channel known to the bot.
type Channel struct {
	ID            uint
	Ref           string
	Username      string
	Title         string
	Description   string
	Status        Status
	Topics        []string
	Level         Level
	Language      string
	SuggestedBy   int64
	SuggestReason string
	ReviewedBy    int64
	ReviewNote    string
	ReviewedAt    *time.Time
	LastIndexedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsApproved reports whether the channel may be indexed and searched.
func (c *Channel) IsApproved() bool {
	return c != nil && c.Status == StatusApproved
}

// HasTopic reports whether the channel is tagged with topic (case-insensitive).
func (c *Channel) HasTopic(topic string) bool {
	topic = strings.ToLower(strings.TrimSpace(topic))
	for _, t := range c.Topics {
		if strings.ToLower(t) == topic {
			return true
		}
	}
	return false
}

// DisplayName returns the title, falling back to @username and then the ref.
func (c *Channel) DisplayName() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	default:
		return c.Ref
	}
}

// NormalizeRef canonicalizes a channel reference: t.me links and @usernames become the bare
// lowercase username, numeric ids are kept verbatim.
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(strings.ToLower(ref), prefix) {
			ref = ref[len(prefix):]
			break
		}
	}
	ref = strings.TrimPrefix(ref, "@")
	ref = strings.TrimSuffix(ref, "/")
	if _, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return ref
	}
	return strings.ToLower(ref)
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Statuses []Status
	Topic    string
	Limit    int
}

// Repository persists channels.
type Repository interface {
	Create(ctx context.Context, ch *Channel) (*Channel, error)
	FindByID(ctx context.Context, id uint) (*Channel, error)
	FindByRef(ctx context.Context, ref string) (*Channel, error)
	List(ctx context.Context, filter ListFilter) ([]*Channel, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
	// UpdateStatus moves the channel to ch.Status only if its stored status is still from.
	// It returns false when another writer moved it first.
	UpdateStatus(ctx context.Context, ch *Channel, from Status) (bool, error)
	UpdateMetadata(ctx context.Context, ch *Channel) error
	MarkIndexed(ctx context.Context, id uint, at time.Time) error
}
