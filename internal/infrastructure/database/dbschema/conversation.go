package dbschema

import (
	"time"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(ConversationTurn{})
}

type ConversationTurn struct {
	ID              uint      `gorm:"primaryKey"`
	ConversationKey string    `gorm:"size:64;not null;index:idx_conversation_key_id,priority:1"`
	Role            string    `gorm:"size:16;not null"`
	Text            string    `gorm:"type:text;not null"`
	At              time.Time `gorm:"not null"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

func NewSchemaConversationTurn(key conversation.Key, t conversation.Turn) *ConversationTurn {
	return &ConversationTurn{
		ConversationKey: string(key),
		Role:            string(t.Role),
		Text:            t.Text,
		At:              t.At,
	}
}

func (t *ConversationTurn) EtoD() conversation.Turn {
	return conversation.Turn{
		Role: conversation.Role(t.Role),
		Text: t.Text,
		At:   t.At,
	}
}
