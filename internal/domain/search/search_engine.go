package search

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/metrics"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const DefaultResultLimit = 10

// Filter narrows a search. Zero values mean "no restriction" except Limit, which falls back
// to the engine default.
type Filter struct {
	ChannelIDs []uint
	From       *time.Time
	To         *time.Time
	Topic      string
	Limit      int
	Offset     int
}

// RankedMessage is one search hit.
type RankedMessage struct {
	Message message.Message
	Channel *channel.Channel
	Score   float64
	Matched []string
}

// ChannelLister supplies the channels that are currently searchable.
type ChannelLister interface {
	ListApproved(ctx context.Context) ([]*channel.Channel, error)
}

type EngineConfig struct {
	Weights      Weights
	DefaultLimit int
}

// Engine answers ranked full-text queries over approved channels. It only reads committed
// state and takes no locks shared with the indexer.
type Engine struct {
	store        message.Store
	channels     ChannelLister
	ranker       *Ranker
	defaultLimit int
	log          zerolog.Logger
}

func NewEngine(store message.Store, channels ChannelLister, cfg EngineConfig, log zerolog.Logger) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultResultLimit
	}
	return &Engine{
		store:        store,
		channels:     channels,
		ranker:       NewRanker(cfg.Weights),
		defaultLimit: cfg.DefaultLimit,
		log:          log.With().Str("component", "search").Logger(),
	}
}

// Search tokenizes query, collects candidates from approved channels matching filter, ranks
// them and returns the requested page. A query without usable terms yields no results.
func (e *Engine) Search(ctx context.Context, query string, filter Filter) ([]RankedMessage, error) {
	start := time.Now()
	results, err := e.search(ctx, query, filter)
	if err == nil {
		metrics.RecordSearch(time.Since(start), len(results))
	}
	return results, err
}

func (e *Engine) search(ctx context.Context, query string, filter Filter) ([]RankedMessage, error) {
	terms := message.Terms(query)
	if len(terms) == 0 {
		return []RankedMessage{}, nil
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return []RankedMessage{}, nil
	}

	approved, err := e.channels.ListApproved(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list searchable channels")
	}
	allowed := allowedChannels(approved, filter)
	if len(allowed) == 0 {
		return []RankedMessage{}, nil
	}
	ids := make([]uint, 0, len(allowed))
	for id := range allowed {
		ids = append(ids, id)
	}

	candidates, err := e.store.FindCandidates(ctx, message.CandidateQuery{
		Terms:      terms,
		ChannelIDs: ids,
		From:       filter.From,
		To:         filter.To,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load search candidates")
	}
	if len(candidates) == 0 {
		return []RankedMessage{}, nil
	}

	var reference time.Time
	newest, err := e.store.NewestDate(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load search reference date")
	}
	if newest != nil {
		reference = *newest
	}
	ranked := e.ranker.Rank(candidates, len(terms), reference)

	limit := filter.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ranked) {
		return []RankedMessage{}, nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	page := ranked[offset:end]
	texts, err := e.loadTexts(ctx, page)
	if err != nil {
		return nil, err
	}

	results := make([]RankedMessage, 0, len(page))
	for _, s := range page {
		msg := s.Candidate.Message
		if full, ok := texts[msg.ID]; ok {
			msg = full
		}
		results = append(results, RankedMessage{
			Message: msg,
			Channel: allowed[s.Candidate.Message.ChannelID],
			Score:   s.Score,
			Matched: matchedTerms(terms, s.Candidate.Matches),
		})
	}

	e.log.Debug().
		Int("terms", len(terms)).
		Int("candidates", len(candidates)).
		Int("returned", len(results)).
		Msg("search completed")
	return results, nil
}

// loadTexts fetches the full rows of the returned page; candidates only carry metadata.
func (e *Engine) loadTexts(ctx context.Context, page []Scored) (map[uint]message.Message, error) {
	ids := make([]uint, len(page))
	for i, s := range page {
		ids[i] = s.Candidate.Message.ID
	}
	loaded, err := e.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load search results")
	}
	out := make(map[uint]message.Message, len(loaded))
	for _, m := range loaded {
		out[m.ID] = m
	}
	return out, nil
}

func allowedChannels(approved []*channel.Channel, filter Filter) map[uint]*channel.Channel {
	var requested map[uint]struct{}
	if len(filter.ChannelIDs) > 0 {
		requested = make(map[uint]struct{}, len(filter.ChannelIDs))
		for _, id := range filter.ChannelIDs {
			requested[id] = struct{}{}
		}
	}

	allowed := make(map[uint]*channel.Channel, len(approved))
	for _, ch := range approved {
		if !ch.IsApproved() {
			continue
		}
		if requested != nil {
			if _, ok := requested[ch.ID]; !ok {
				continue
			}
		}
		if filter.Topic != "" && !ch.HasTopic(filter.Topic) {
			continue
		}
		allowed[ch.ID] = ch
	}
	return allowed
}

func matchedTerms(terms []string, matches map[string]int) []string {
	out := make([]string, 0, len(matches))
	for _, t := range terms {
		if matches[t] > 0 {
			out = append(out, t)
		}
	}
	return out
}
