package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
)

type ProviderStatus struct {
	Name   string `json:"name"`
	Model  string `json:"model"`
	Active bool   `json:"active"`
}

type StatusResponse struct {
	Version       string           `json:"version"`
	Providers     []ProviderStatus `json:"providers"`
	Channels      map[string]int64 `json:"channels"`
	Messages      int64            `json:"messages"`
	Conversations int              `json:"conversations"`
	Turns         int              `json:"turns"`
	IndexRuns     int              `json:"index_runs"`
}

type Providers interface {
	Active() llm.Kind
	Available() []llm.Kind
	Model(kind llm.Kind) string
}

type ChannelCounter interface {
	CountByStatus(ctx context.Context) (map[channel.Status]int64, error)
}

type MessageCounter interface {
	Count(ctx context.Context) (int64, error)
}

type ConversationStats interface {
	Stats() conversation.Stats
}

// RunningIndexes is optional; nil when the userbot is disabled.
type RunningIndexes interface {
	Running() []uint
}

type StatusHandler struct {
	providers     Providers
	channels      ChannelCounter
	messages      MessageCounter
	conversations ConversationStats
	indexer       RunningIndexes
}

func NewStatusHandler(providers Providers, channels ChannelCounter, messages MessageCounter, conversations ConversationStats, indexer RunningIndexes) *StatusHandler {
	return &StatusHandler{
		providers:     providers,
		channels:      channels,
		messages:      messages,
		conversations: conversations,
		indexer:       indexer,
	}
}

// Status handles GET /v1/status.
func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := h.channels.CountByStatus(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	messages, err := h.messages.Count(ctx)
	if err != nil {
		handleError(c, err)
		return
	}

	active := h.providers.Active()
	providers := make([]ProviderStatus, 0)
	for _, kind := range h.providers.Available() {
		providers = append(providers, ProviderStatus{Name: string(kind), Model: h.providers.Model(kind), Active: kind == active})
	}
	channels := map[string]int64{}
	for _, status := range []channel.Status{channel.StatusPending, channel.StatusApproved, channel.StatusRejected} {
		channels[string(status)] = counts[status]
	}
	stats := h.conversations.Stats()
	resp := StatusResponse{
		Version:       config.Version,
		Providers:     providers,
		Channels:      channels,
		Messages:      messages,
		Conversations: stats.Conversations,
		Turns:         stats.Turns,
	}
	if h.indexer != nil {
		resp.IndexRuns = len(h.indexer.Running())
	}
	c.JSON(http.StatusOK, resp)
}
