package indexer_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/retry"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/databasetest"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository/channelrepo"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository/messagerepo"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/lock"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const admin int64 = 1

type staticSource struct {
	mu      sync.Mutex
	history map[string][]indexer.SourceMessage
}

func (s *staticSource) Fetch(_ context.Context, ref string, offsetID int64, limit int) ([]indexer.SourceMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var page []indexer.SourceMessage
	for _, m := range s.history[ref] {
		if offsetID > 0 && m.ID >= offsetID {
			continue
		}
		page = append(page, m)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

type pipeline struct {
	channels *channel.Service
	indexer  *indexer.Indexer
	search   *search.Engine
	source   *staticSource
}

func newPipeline(t *testing.T) *pipeline {
	db := databasetest.Open(t)
	channels := channel.NewService(channelrepo.NewChannelGormRepository(db), func(id int64) bool { return id == admin }, 16)
	store := messagerepo.NewMessageGormRepository(db)
	source := &staticSource{history: make(map[string][]indexer.SourceMessage)}

	return &pipeline{
		channels: channels,
		indexer: indexer.New(source, store, channels, lock.NewLocalLocker(), indexer.Options{
			PageSize: 20,
			Retry:    retry.NoRetryPolicy(),
		}, zerolog.Nop()),
		search: search.NewEngine(store, channels, search.EngineConfig{Weights: search.DefaultWeights()}, zerolog.Nop()),
		source: source,
	}
}

func posts(n int, topic string) []indexer.SourceMessage {
	now := time.Now().UTC()
	out := make([]indexer.SourceMessage, 0, n)
	for id := n; id >= 1; id-- {
		out = append(out, indexer.SourceMessage{
			ID:        int64(id),
			Date:      now.Add(-time.Duration(n-id) * time.Minute),
			HasSender: true,
			Text:      fmt.Sprintf("lesson %d about %s", id, topic),
			Views:     int64(id),
		})
	}
	return out
}

func TestApproveIndexSearch(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	suggested, created, err := p.channels.Suggest(ctx, channel.SuggestInput{Ref: "@PyDaily", SuggestedBy: 77})
	require.NoError(t, err)
	require.True(t, created)
	_, err = p.channels.Approve(ctx, suggested.ID, admin, "")
	require.NoError(t, err)
	p.source.history["pydaily"] = posts(80, "python")

	report, err := p.indexer.Index(ctx, "pydaily", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, report.Fetched)
	assert.Equal(t, 50, report.Inserted)

	results, err := p.search.Search(ctx, "python", search.Filter{})
	require.NoError(t, err)
	require.Len(t, results, search.DefaultResultLimit)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, suggested.ID, results[0].Channel.ID)

	again, err := p.indexer.Index(ctx, "pydaily", 50)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 50, again.Updated)

	stored, err := p.channels.Get(ctx, suggested.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastIndexedAt)
}

func TestRejectedChannelCannotBeIndexed(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	suggested, _, err := p.channels.Suggest(ctx, channel.SuggestInput{Ref: "spamchan", SuggestedBy: 77})
	require.NoError(t, err)
	_, err = p.channels.Reject(ctx, suggested.ID, admin, "off topic")
	require.NoError(t, err)
	p.source.history["spamchan"] = posts(5, "python")

	_, err = p.indexer.Index(ctx, "spamchan", 0)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	results, err := p.search.Search(ctx, "python", search.Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRemovedChannelDisappearsFromSearch(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	ch, err := p.channels.Add(ctx, channel.AddInput{Ref: "golang_fa", Topics: []string{"go"}, AddedBy: admin})
	require.NoError(t, err)
	p.source.history["golang_fa"] = posts(3, "goroutines")

	_, err = p.indexer.Index(ctx, "golang_fa", 0)
	require.NoError(t, err)

	results, err := p.search.Search(ctx, "goroutines", search.Filter{Topic: "go"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	_, err = p.channels.Reject(ctx, ch.ID, admin, "removed")
	require.NoError(t, err)

	results, err = p.search.Search(ctx, "goroutines", search.Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStrongOldPostOutranksNewerMentions(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	ch, err := p.channels.Add(ctx, channel.AddInput{Ref: "pyarchive", AddedBy: admin})
	require.NoError(t, err)

	history := posts(120, "misc python")
	// the pinned post has the highest id but is a year old
	pinned := indexer.SourceMessage{
		ID:        121,
		Date:      time.Now().UTC().AddDate(-1, 0, 0),
		HasSender: true,
		Text:      strings.Repeat("python ", 40),
		Views:     100000,
	}
	history = append([]indexer.SourceMessage{pinned}, history...)
	p.source.history["pyarchive"] = history

	_, err = p.indexer.Index(ctx, "pyarchive", 0)
	require.NoError(t, err)

	results, err := p.search.Search(ctx, "python", search.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(121), results[0].Message.SourceID)
	assert.Equal(t, ch.ID, results[0].Channel.ID)
	assert.Contains(t, results[0].Message.Text, "python")
}
