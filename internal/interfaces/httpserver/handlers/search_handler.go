package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
)

type SearchQuery struct {
	Q       string    `form:"q" binding:"required"`
	Channel uint      `form:"channel"`
	Topic   string    `form:"topic"`
	From    time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To      time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Limit   int       `form:"limit" binding:"omitempty,min=1,max=50"`
	Offset  int       `form:"offset" binding:"omitempty,min=0"`
}

type SearchHit struct {
	MessageID int64     `json:"message_id"`
	ChannelID uint      `json:"channel_id"`
	Channel   string    `json:"channel"`
	Date      time.Time `json:"date"`
	Text      string    `json:"text"`
	Views     int64     `json:"views"`
	Forwards  int64     `json:"forwards"`
	Score     float64   `json:"score"`
	Matched   []string  `json:"matched"`
}

type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

type Searcher interface {
	Search(ctx context.Context, query string, filter search.Filter) ([]search.RankedMessage, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{search: s}
}

// Search handles GET /v1/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	results, err := h.search.Search(c.Request.Context(), q.Q, q.filter())
	if err != nil {
		handleError(c, err)
		return
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hit := SearchHit{
			MessageID: r.Message.SourceID,
			ChannelID: r.Message.ChannelID,
			Date:      r.Message.Date,
			Text:      r.Message.Text,
			Views:     r.Message.Views,
			Forwards:  r.Message.Forwards,
			Score:     r.Score,
			Matched:   r.Matched,
		}
		if r.Channel != nil {
			hit.Channel = r.Channel.DisplayName()
		}
		hits = append(hits, hit)
	}
	c.JSON(http.StatusOK, SearchResponse{Query: q.Q, Results: hits})
}

func (q SearchQuery) filter() search.Filter {
	filter := search.Filter{Topic: q.Topic, Limit: q.Limit, Offset: q.Offset}
	if q.Channel > 0 {
		filter.ChannelIDs = []uint{q.Channel}
	}
	if !q.From.IsZero() {
		from := q.From.UTC()
		filter.From = &from
	}
	if !q.To.IsZero() {
		// the whole "to" day is included
		to := q.To.UTC().Add(24*time.Hour - time.Nanosecond)
		filter.To = &to
	}
	return filter
}
