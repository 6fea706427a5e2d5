package llmprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
)

const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter posts OpenAI-shaped chat completions to the OpenRouter gateway.
type OpenRouter struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	model   string
}

var _ llm.Provider = (*OpenRouter)(nil)

func NewOpenRouter(entry config.ProviderEntry) *OpenRouter {
	baseURL := strings.TrimRight(strings.TrimSpace(entry.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	return &OpenRouter{
		client:  newRestyClient("openrouter", entry.Timeout),
		baseURL: baseURL,
		apiKey:  entry.APIKey,
		model:   entry.Model,
	}
}

func (p *OpenRouter) Kind() llm.Kind { return llm.KindOpenRouter }
func (p *OpenRouter) Model() string  { return p.model }

func (p *OpenRouter) Complete(ctx context.Context, req llm.Request) (string, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", p.apiKey)).
		SetHeader("X-Title", "PushTutor").
		SetBody(openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    chatMessages(req),
			Temperature: float32(req.Temperature),
			MaxTokens:   req.MaxTokens,
		}).
		SetResult(&respBody).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return "", transportError(ctx, llm.KindOpenRouter, err)
	}
	if resp.IsError() {
		return "", statusError(ctx, llm.KindOpenRouter, resp.StatusCode(), strings.TrimSpace(resp.String()), nil)
	}
	return firstChoice(respBody), nil
}
