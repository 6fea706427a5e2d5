package llmprovider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
)

// OpenAI talks to the OpenAI chat completions API, or any compatible endpoint set as BaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ llm.Provider = (*OpenAI)(nil)

func NewOpenAI(entry config.ProviderEntry) *OpenAI {
	cfg := openai.DefaultConfig(entry.APIKey)
	if entry.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(entry.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: entry.Timeout}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: entry.Model}
}

func (p *OpenAI) Kind() llm.Kind { return llm.KindOpenAI }
func (p *OpenAI) Model() string  { return p.model }

func (p *OpenAI) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    chatMessages(req),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", openAIError(ctx, llm.KindOpenAI, err)
	}
	return firstChoice(resp), nil
}

func chatMessages(req llm.Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
}

func firstChoice(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func openAIError(ctx context.Context, kind llm.Kind, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(ctx, kind, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(ctx, kind, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return transportError(ctx, kind, err)
}
