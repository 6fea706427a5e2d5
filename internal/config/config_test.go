package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENABLE_BOT", "false")
	t.Setenv("ADMIN_IDS", "111,222")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("DEFAULT_MODEL", "gemini-1.5-pro")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, "sqlite://pushtutor.db", cfg.DatabaseURL)
	assert.Equal(t, "gemini", cfg.DefaultLLMProvider)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.True(t, cfg.IsAdmin(222))
	assert.False(t, cfg.IsAdmin(333))
	assert.Same(t, cfg, GetGlobal())

	entries := cfg.ProviderEntries()
	require.Len(t, entries, 4)
	assert.Equal(t, ProviderGemini, entries[0].Name)
	assert.Equal(t, "gemini-1.5-pro", entries[0].Model)
	assert.True(t, entries[0].HasCredential())
	assert.False(t, entries[1].HasCredential())
	assert.Equal(t, "https://openrouter.ai/api/v1", entries[2].BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENABLE_BOT", "false")
	t.Setenv("HISTORY_LIMIT", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresBotTokenWhenBotEnabled(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENABLE_BOT", "true")
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	require.ErrorContains(t, err, "BOT_TOKEN")
}

func TestSystemPromptFallsBack(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{SystemPromptFile: filepath.Join(dir, "missing.txt")}
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt())

	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Be brief.\n"), 0o644))
	cfg.SystemPromptFile = path
	assert.Equal(t, "Be brief.", cfg.SystemPrompt())
}

func TestProviderFileOverlay(t *testing.T) {
	t.Setenv("MY_ROUTER_KEY", "or-key")
	path := filepath.Join(t.TempDir(), "providers.yml")
	doc := `providers:
  - name: openrouter
    model: meta-llama/llama-3.1-70b-instruct
    api_key: ${MY_ROUTER_KEY}
    timeout: 15s
  - name: gemini
    enable: "false"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	overlay, err := LoadProviderFile(path)
	require.NoError(t, err)
	require.Len(t, overlay, 2)
	assert.Equal(t, "MY_ROUTER_KEY", overlay[0].CredentialRef)

	base := (&Config{GeminiModel: "g", OpenAIModel: "o", OpenRouterModel: "r", AnthropicModel: "a", ProviderTimeout: time.Minute}).envProviderEntries()
	merged := MergeProviderEntries(base, overlay)

	require.Len(t, merged, 4)
	assert.Equal(t, ProviderOpenRouter, merged[0].Name)
	assert.Equal(t, "or-key", merged[0].APIKey)
	assert.Equal(t, 15*time.Second, merged[0].Timeout)
	assert.Equal(t, ProviderGemini, merged[1].Name)
	assert.False(t, merged[1].Enabled)
	assert.Equal(t, ProviderOpenAI, merged[2].Name)
	assert.Equal(t, ProviderAnthropic, merged[3].Name)
}

func TestLoadProviderFileRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: mistral\n"), 0o644))

	_, err := LoadProviderFile(path)
	require.ErrorContains(t, err, "unknown provider")
}
