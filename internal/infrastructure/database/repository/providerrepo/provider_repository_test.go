package providerrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/databasetest"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

func TestProviderConfigRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProviderConfigGormRepository(databasetest.Open(t))

	require.NoError(t, repo.Sync(ctx, []llm.ProviderConfig{
		{Name: llm.KindGemini, Model: "gemini-2.0-flash-exp", CredentialRef: "GEMINI_API_KEY", Available: true},
		{Name: llm.KindOpenAI, Model: "gpt-4o", CredentialRef: "OPENAI_API_KEY", Available: true},
	}))

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, repo.SetActive(ctx, llm.KindOpenAI))
	require.NoError(t, repo.SetActive(ctx, llm.KindGemini))
	active, err = repo.FindActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, llm.KindGemini, active.Name)

	err = repo.SetActive(ctx, llm.KindAnthropic)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	require.NoError(t, repo.Sync(ctx, []llm.ProviderConfig{
		{Name: llm.KindGemini, Model: "gemini-2.5-pro", CredentialRef: "GEMINI_API_KEY", Available: true},
	}))
	configs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "gemini-2.5-pro", configs[0].Model)
	assert.True(t, configs[0].Active, "sync preserves the active flag")
	assert.False(t, configs[1].Available, "providers missing from sync become unavailable")

	active, err = repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, llm.KindGemini, active.Name)
}
