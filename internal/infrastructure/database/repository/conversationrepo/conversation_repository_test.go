package conversationrepo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/databasetest"
)

func TestConversationRepositoryKeepsNewestTurns(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationGormRepository(databasetest.Open(t))
	key := conversation.KeyFor(10, 0)
	other := conversation.KeyFor(20, 0)

	for i := 1; i <= 5; i++ {
		turn := conversation.Turn{Role: conversation.RoleUser, Text: fmt.Sprintf("m%d", i), At: time.Now().UTC()}
		require.NoError(t, repo.Append(ctx, key, turn, 3))
	}
	require.NoError(t, repo.Append(ctx, other, conversation.Turn{Role: conversation.RoleAssistant, Text: "x", At: time.Now().UTC()}, 3))

	turns, err := repo.Load(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "m3", turns[0].Text)
	assert.Equal(t, "m5", turns[2].Text)

	newest, err := repo.Load(ctx, key, 1)
	require.NoError(t, err)
	require.Len(t, newest, 1)
	assert.Equal(t, "m5", newest[0].Text)

	require.NoError(t, repo.Clear(ctx, key))
	turns, err = repo.Load(ctx, key, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	kept, err := repo.Load(ctx, other, 10)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
