package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
)

type ChannelResponse struct {
	ID            uint       `json:"id"`
	Ref           string     `json:"ref"`
	Username      string     `json:"username,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Topics        []string   `json:"topics"`
	Level         string     `json:"level,omitempty"`
	Language      string     `json:"language,omitempty"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
}

type ChannelLister interface {
	ListApproved(ctx context.Context) ([]*channel.Channel, error)
}

type ChannelHandler struct {
	channels ChannelLister
}

func NewChannelHandler(channels ChannelLister) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

// List handles GET /v1/channels. Only approved channels are public; ?topic= narrows the list.
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.channels.ListApproved(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	topic := c.Query("topic")
	out := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		if topic != "" && !ch.HasTopic(topic) {
			continue
		}
		topics := ch.Topics
		if topics == nil {
			topics = []string{}
		}
		out = append(out, ChannelResponse{
			ID:            ch.ID,
			Ref:           ch.Ref,
			Username:      ch.Username,
			Title:         ch.DisplayName(),
			Description:   ch.Description,
			Topics:        topics,
			Level:         string(ch.Level),
			Language:      ch.Language,
			LastIndexedAt: ch.LastIndexedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
