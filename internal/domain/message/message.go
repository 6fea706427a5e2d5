package message

import (
	"context"
	"strings"
	"time"
)

// Message is one indexed channel post. It is identified by (ChannelID, SourceID); only the
// engagement counters and, when the upstream edit changes it, the text are ever rewritten.
type Message struct {
	ID        uint
	ChannelID uint
	SourceID  int64
	Date      time.Time
	HasSender bool
	Text      string
	Views     int64
	Forwards  int64
	HasMedia  bool
	MediaType string
	IndexedAt time.Time
	UpdatedAt time.Time
}

// Indexable reports whether the message carries enough content to be stored and searched.
func (m *Message) Indexable() bool {
	return m.HasSender && strings.TrimSpace(m.Text) != ""
}

// SearchToken is a normalized term derived from a message text.
type SearchToken struct {
	MessageID uint
	Term      string
	Frequency int
}

// UpsertOutcome tells the caller which counter an upsert should advance.
type UpsertOutcome int

const (
	OutcomeInserted UpsertOutcome = iota + 1
	OutcomeUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// CandidateQuery narrows candidate retrieval. An empty ChannelIDs slice matches nothing.
type CandidateQuery struct {
	Terms      []string
	ChannelIDs []uint
	From       *time.Time
	To         *time.Time
}

// Candidate is a message whose token set intersects the query, together with the
// frequency of every matched query term. Message carries metadata only; Text is empty
// until the message is loaded with FindByIDs.
type Candidate struct {
	Message Message
	Matches map[string]int
}

// ChannelStats summarizes what is stored for one channel.
type ChannelStats struct {
	ChannelID     uint
	Messages      int64
	TotalViews    int64
	TotalForwards int64
	NewestDate    *time.Time
}

// Store persists messages and their search tokens.
type Store interface {
	// Upsert writes the message and its regenerated tokens in one transaction.
	Upsert(ctx context.Context, msg *Message) (UpsertOutcome, error)
	FindBySource(ctx context.Context, channelID uint, sourceID int64) (*Message, error)
	// FindCandidates returns every matching message, unbounded, so ranking sees the whole set.
	FindCandidates(ctx context.Context, query CandidateQuery) ([]Candidate, error)
	FindByIDs(ctx context.Context, ids []uint) ([]Message, error)
	// NewestDate is the date of the newest stored message, nil when the store is empty.
	NewestDate(ctx context.Context) (*time.Time, error)
	StatsByChannel(ctx context.Context, channelID uint) (*ChannelStats, error)
	Count(ctx context.Context) (int64, error)
}
