package channelrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/databasetest"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

func TestChannelRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewChannelGormRepository(databasetest.Open(t))

	created, err := repo.Create(ctx, &channel.Channel{
		Ref:      "pylearn",
		Title:    "Py Learn",
		Status:   channel.StatusPending,
		Topics:   []string{"python", "django"},
		Language: "fa",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, []string{"python", "django"}, created.Topics)

	_, err = repo.Create(ctx, &channel.Channel{Ref: "pylearn", Status: channel.StatusPending})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))

	byRef, err := repo.FindByRef(ctx, "pylearn")
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, created.ID, byRef.ID)

	missing, err := repo.FindByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Now().UTC()
	approved := *byRef
	approved.Status = channel.StatusApproved
	approved.ReviewedBy = 42
	approved.ReviewedAt = &now

	ok, err := repo.UpdateStatus(ctx, &approved, channel.StatusPending)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, &approved, channel.StatusPending)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not apply")

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, channel.StatusApproved, stored.Status)
	assert.Equal(t, int64(42), stored.ReviewedBy)
	require.NotNil(t, stored.ReviewedAt)

	require.NoError(t, repo.MarkIndexed(ctx, created.ID, now))
	stored, err = repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastIndexedAt)
	assert.WithinDuration(t, now, *stored.LastIndexedAt, time.Second)

	stored.Topics = []string{"go"}
	stored.Level = channel.Level("advanced")
	require.NoError(t, repo.UpdateMetadata(ctx, stored))
	stored, err = repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, stored.Topics)
	assert.Equal(t, channel.Level("advanced"), stored.Level)
}

func TestChannelRepositoryListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewChannelGormRepository(databasetest.Open(t))

	fixtures := []*channel.Channel{
		{Ref: "a", Status: channel.StatusApproved, Topics: []string{"python"}},
		{Ref: "b", Status: channel.StatusApproved, Topics: []string{"go"}},
		{Ref: "c", Status: channel.StatusPending},
		{Ref: "d", Status: channel.StatusRejected, Topics: []string{"python"}},
	}
	for _, ch := range fixtures {
		_, err := repo.Create(ctx, ch)
		require.NoError(t, err)
	}

	approved, err := repo.List(ctx, channel.ListFilter{Statuses: []channel.Status{channel.StatusApproved}})
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	python, err := repo.List(ctx, channel.ListFilter{Topic: "python"})
	require.NoError(t, err)
	require.Len(t, python, 2)
	assert.Equal(t, "a", python[0].Ref)
	assert.Equal(t, "d", python[1].Ref)

	limited, err := repo.List(ctx, channel.ListFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[channel.StatusApproved])
	assert.Equal(t, int64(1), counts[channel.StatusPending])
	assert.Equal(t, int64(1), counts[channel.StatusRejected])
}
