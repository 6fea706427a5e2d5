package llmprovider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
)

// BuildRegistry creates one provider per enabled entry that has a credential. Entries without
// a key are skipped with an info log, so an empty registry is not an error.
func BuildRegistry(ctx context.Context, entries []config.ProviderEntry, log zerolog.Logger) ([]llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(entries))
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		if !entry.HasCredential() {
			log.Info().Str("provider", entry.Name).Msg("no credential configured, provider not registered")
			continue
		}
		kind, ok := llm.ParseKind(entry.Name)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", entry.Name)
		}

		var provider llm.Provider
		switch kind {
		case llm.KindGemini:
			gemini, err := NewGemini(ctx, entry)
			if err != nil {
				return nil, fmt.Errorf("create gemini client: %w", err)
			}
			provider = gemini
		case llm.KindOpenAI:
			provider = NewOpenAI(entry)
		case llm.KindOpenRouter:
			provider = NewOpenRouter(entry)
		case llm.KindAnthropic:
			provider = NewAnthropic(entry)
		}
		providers = append(providers, provider)
		log.Info().Str("provider", entry.Name).Str("model", entry.Model).Msg("LLM provider registered")
	}
	return providers, nil
}

// Credentials maps each provider to the name of the variable that holds its key.
func Credentials(entries []config.ProviderEntry) map[llm.Kind]string {
	refs := make(map[llm.Kind]string, len(entries))
	for _, entry := range entries {
		if kind, ok := llm.ParseKind(entry.Name); ok && entry.CredentialRef != "" {
			refs[kind] = entry.CredentialRef
		}
	}
	return refs
}
