package llmprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

func request() llm.Request {
	return llm.Request{
		SystemPrompt: "be brief",
		History: []conversation.Turn{
			{Role: conversation.RoleUser, Text: "hi"},
			{Role: conversation.RoleAssistant, Text: "hello"},
		},
		Prompt:      "what is a goroutine?",
		Temperature: 0.2,
		MaxTokens:   64,
	}
}

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, status int, body string, seen *capturedRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  a lightweight thread  "},"finish_reason":"stop"}]}`

func TestOpenAICompletes(t *testing.T) {
	var seen capturedRequest
	srv := chatServer(t, http.StatusOK, okBody, &seen, nil)
	p := NewOpenAI(config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini", APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})

	text, err := p.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "a lightweight thread", text)
	assert.Equal(t, "gpt-4o-mini", seen.Model)
	require.Len(t, seen.Messages, 4)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "assistant", seen.Messages[2].Role)
	assert.Equal(t, "what is a goroutine?", seen.Messages[3].Content)
}

func TestOpenAIClassifiesStatus(t *testing.T) {
	cases := map[int]platformerrors.ErrorType{
		http.StatusUnauthorized:        platformerrors.ErrorTypeUnauthorized,
		http.StatusTooManyRequests:     platformerrors.ErrorTypeQuotaExceeded,
		http.StatusServiceUnavailable:  platformerrors.ErrorTypeTransient,
		http.StatusBadRequest:          platformerrors.ErrorTypeExternal,
		http.StatusInternalServerError: platformerrors.ErrorTypeTransient,
	}
	for status, want := range cases {
		srv := chatServer(t, status, `{"error":{"message":"nope","type":"error"}}`, nil, nil)
		p := NewOpenAI(config.ProviderEntry{Model: "m", APIKey: "k", BaseURL: srv.URL + "/v1"})

		_, err := p.Complete(context.Background(), request())
		require.Error(t, err)
		assert.Equal(t, want, platformerrors.TypeOf(err), "status %d", status)
	}
}

func TestOpenRouterCompletes(t *testing.T) {
	var auth string
	var seen capturedRequest
	srv := chatServer(t, http.StatusOK, okBody, &seen, &auth)
	p := NewOpenRouter(config.ProviderEntry{Model: "meta/llama", APIKey: "secret", BaseURL: srv.URL + "/v1/"})

	text, err := p.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "a lightweight thread", text)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "meta/llama", seen.Model)
}

func TestOpenRouterClassifiesStatus(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, nil, nil)
	p := NewOpenRouter(config.ProviderEntry{Model: "m", APIKey: "k", BaseURL: srv.URL + "/v1"})

	_, err := p.Complete(context.Background(), request())
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeQuotaExceeded))
}

func TestOpenRouterCancelled(t *testing.T) {
	srv := chatServer(t, http.StatusOK, okBody, nil, nil)
	p := NewOpenRouter(config.ProviderEntry{Model: "m", APIKey: "k", BaseURL: srv.URL + "/v1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, request())
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeCancelled))
}

func TestGeminiContentsMapsRoles(t *testing.T) {
	contents := geminiContents(request())

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "what is a goroutine?", contents[2].Parts[0].Text)
}

func TestAnthropicMessagesAlternate(t *testing.T) {
	req := llm.Request{
		History: []conversation.Turn{
			{Role: conversation.RoleAssistant, Text: "orphan reply"},
			{Role: conversation.RoleUser, Text: "one"},
			{Role: conversation.RoleUser, Text: "two"},
			{Role: conversation.RoleAssistant, Text: "answer"},
			{Role: conversation.RoleUser, Text: "three"},
		},
		Prompt: "four",
	}

	messages := anthropicMessages(req)

	require.Len(t, messages, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, messages[2].Role)
	assert.Equal(t, "one\n\ntwo", messages[0].Content[0].OfText.Text)
	assert.Equal(t, "three\n\nfour", messages[2].Content[0].OfText.Text)
}

func TestBuildRegistrySkipsMissingCredentials(t *testing.T) {
	entries := []config.ProviderEntry{
		{Name: "openai", Model: "gpt", APIKey: "k", CredentialRef: "OPENAI_API_KEY", Enabled: true},
		{Name: "openrouter", Model: "x", CredentialRef: "OPENROUTER_API_KEY", Enabled: true},
		{Name: "anthropic", Model: "claude", APIKey: "k", Enabled: false},
	}

	providers, err := BuildRegistry(context.Background(), entries, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, llm.KindOpenAI, providers[0].Kind())
	assert.Equal(t, "gpt", providers[0].Model())

	_, err = BuildRegistry(context.Background(), []config.ProviderEntry{{Name: "mistral", APIKey: "k", Enabled: true}}, zerolog.Nop())
	assert.Error(t, err)

	refs := Credentials(entries)
	assert.Equal(t, "OPENROUTER_API_KEY", refs[llm.KindOpenRouter])
}
