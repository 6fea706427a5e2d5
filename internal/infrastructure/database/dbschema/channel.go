package dbschema

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Channel{})
}

type Channel struct {
	BaseModel
	Ref           string `gorm:"size:255;not null;uniqueIndex"`
	Username      string `gorm:"size:255"`
	Title         string `gorm:"size:512"`
	Description   string `gorm:"type:text"`
	Status        string `gorm:"size:16;not null;index"`
	Topics        datatypes.JSON
	Level         string `gorm:"size:16"`
	Language      string `gorm:"size:16"`
	SuggestedBy   int64  `gorm:"index"`
	SuggestReason string `gorm:"type:text"`
	ReviewedBy    int64
	ReviewNote    string `gorm:"type:text"`
	ReviewedAt    *time.Time
	LastIndexedAt *time.Time
}

func (Channel) TableName() string {
	return "channels"
}

func NewSchemaChannel(c *channel.Channel) *Channel {
	var topics datatypes.JSON
	if len(c.Topics) > 0 {
		if data, err := json.Marshal(c.Topics); err == nil {
			topics = datatypes.JSON(data)
		}
	}
	return &Channel{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		Ref:           c.Ref,
		Username:      c.Username,
		Title:         c.Title,
		Description:   c.Description,
		Status:        string(c.Status),
		Topics:        topics,
		Level:         string(c.Level),
		Language:      c.Language,
		SuggestedBy:   c.SuggestedBy,
		SuggestReason: c.SuggestReason,
		ReviewedBy:    c.ReviewedBy,
		ReviewNote:    c.ReviewNote,
		ReviewedAt:    c.ReviewedAt,
		LastIndexedAt: c.LastIndexedAt,
	}
}

func (c *Channel) EtoD() *channel.Channel {
	var topics []string
	if len(c.Topics) > 0 {
		if err := json.Unmarshal(c.Topics, &topics); err != nil {
			log := logger.GetLogger()
			log.Error().Msgf("failed to unmarshal topics for channel ID %d: %v", c.ID, err)
		}
	}
	return &channel.Channel{
		ID:            c.ID,
		Ref:           c.Ref,
		Username:      c.Username,
		Title:         c.Title,
		Description:   c.Description,
		Status:        channel.Status(c.Status),
		Topics:        topics,
		Level:         channel.Level(c.Level),
		Language:      c.Language,
		SuggestedBy:   c.SuggestedBy,
		SuggestReason: c.SuggestReason,
		ReviewedBy:    c.ReviewedBy,
		ReviewNote:    c.ReviewNote,
		ReviewedAt:    c.ReviewedAt,
		LastIndexedAt: c.LastIndexedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
