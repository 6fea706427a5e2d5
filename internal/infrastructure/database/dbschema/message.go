package dbschema

import (
	"time"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ChannelMessage{}, SearchToken{})
}

type ChannelMessage struct {
	ID        uint      `gorm:"primaryKey"`
	ChannelID uint      `gorm:"not null;uniqueIndex:idx_channel_source,priority:1;index:idx_channel_date,priority:1"`
	SourceID  int64     `gorm:"not null;uniqueIndex:idx_channel_source,priority:2"`
	Date      time.Time `gorm:"not null;index:idx_channel_date,priority:2"`
	HasSender bool      `gorm:"not null"`
	Text      string    `gorm:"type:text;not null"`
	Views     int64     `gorm:"not null"`
	Forwards  int64     `gorm:"not null"`
	HasMedia  bool      `gorm:"not null"`
	MediaType string    `gorm:"size:32"`
	IndexedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ChannelMessage) TableName() string {
	return "channel_messages"
}

type SearchToken struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID uint   `gorm:"not null;index"`
	Term      string `gorm:"size:128;not null;index"`
	Frequency int    `gorm:"not null"`
}

func (SearchToken) TableName() string {
	return "search_tokens"
}

func NewSchemaChannelMessage(m *message.Message) *ChannelMessage {
	return &ChannelMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		SourceID:  m.SourceID,
		Date:      m.Date,
		HasSender: m.HasSender,
		Text:      m.Text,
		Views:     m.Views,
		Forwards:  m.Forwards,
		HasMedia:  m.HasMedia,
		MediaType: m.MediaType,
		IndexedAt: m.IndexedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m *ChannelMessage) EtoD() *message.Message {
	return &message.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		SourceID:  m.SourceID,
		Date:      m.Date,
		HasSender: m.HasSender,
		Text:      m.Text,
		Views:     m.Views,
		Forwards:  m.Forwards,
		HasMedia:  m.HasMedia,
		MediaType: m.MediaType,
		IndexedAt: m.IndexedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func NewSchemaSearchTokens(tokens []message.SearchToken) []SearchToken {
	rows := make([]SearchToken, len(tokens))
	for i, t := range tokens {
		rows[i] = SearchToken{MessageID: t.MessageID, Term: t.Term, Frequency: t.Frequency}
	}
	return rows
}
