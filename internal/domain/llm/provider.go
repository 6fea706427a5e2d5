package llm

import (
	"context"
	"strings"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
)

// Kind names an LLM backend.
type Kind string

const (
	KindGemini     Kind = "gemini"
	KindOpenAI     Kind = "openai"
	KindOpenRouter Kind = "openrouter"
	KindAnthropic  Kind = "anthropic"
)

// FallbackOrder is the fixed secondary order tried after the preferred and active providers.
var FallbackOrder = []Kind{KindGemini, KindOpenAI, KindOpenRouter, KindAnthropic}

// ParseKind maps a user supplied name onto a known Kind.
func ParseKind(name string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range FallbackOrder {
		if known == k {
			return k, true
		}
	}
	return "", false
}

// Request is what a provider receives: the system prompt, prior turns and the new prompt.
type Request struct {
	SystemPrompt string
	History      []conversation.Turn
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// Provider is one LLM backend. Implementations classify their failures as platform errors:
// UNAUTHORIZED for bad credentials, QUOTA_EXCEEDED for rate limits, TRANSIENT for timeouts
// and 5xx responses.
type Provider interface {
	Kind() Kind
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderConfig is the persisted view of a registered provider.
type ProviderConfig struct {
	Name          Kind
	Model         string
	CredentialRef string
	Available     bool
	Active        bool
}

// ConfigRepository persists provider availability and the active selection.
type ConfigRepository interface {
	Sync(ctx context.Context, configs []ProviderConfig) error
	List(ctx context.Context) ([]ProviderConfig, error)
	FindActive(ctx context.Context) (*ProviderConfig, error)
	// SetActive marks name active and every other provider inactive in one transaction.
	SetActive(ctx context.Context, name Kind) error
}
