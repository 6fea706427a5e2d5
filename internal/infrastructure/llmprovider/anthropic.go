package llmprovider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
)

const defaultAnthropicMaxTokens = 1024

// Anthropic calls the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

var _ llm.Provider = (*Anthropic)(nil)

func NewAnthropic(entry config.ProviderEntry) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(entry.APIKey), option.WithMaxRetries(0)}
	if entry.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(entry.BaseURL))
	}
	if entry.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(entry.Timeout))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: entry.Model}
}

func (p *Anthropic) Kind() llm.Kind { return llm.KindAnthropic }
func (p *Anthropic) Model() string  { return p.model }

func (p *Anthropic) Complete(ctx context.Context, req llm.Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  anthropicMessages(req),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError(ctx, llm.KindAnthropic, apiErr.StatusCode, apiErr.Error(), err)
		}
		return "", transportError(ctx, llm.KindAnthropic, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// anthropicMessages merges consecutive turns of the same role; the Messages API requires
// alternating roles starting with the user.
func anthropicMessages(req llm.Request) []anthropic.MessageParam {
	type block struct {
		assistant bool
		text      []string
	}
	var blocks []block
	add := func(assistant bool, text string) {
		if n := len(blocks); n > 0 && blocks[n-1].assistant == assistant {
			blocks[n-1].text = append(blocks[n-1].text, text)
			return
		}
		blocks = append(blocks, block{assistant: assistant, text: []string{text}})
	}
	for _, turn := range req.History {
		add(turn.Role == conversation.RoleAssistant, turn.Text)
	}
	add(false, req.Prompt)
	if blocks[0].assistant {
		blocks = blocks[1:]
	}

	messages := make([]anthropic.MessageParam, 0, len(blocks))
	for _, b := range blocks {
		content := anthropic.NewTextBlock(strings.Join(b.text, "\n\n"))
		if b.assistant {
			messages = append(messages, anthropic.NewAssistantMessage(content))
		} else {
			messages = append(messages, anthropic.NewUserMessage(content))
		}
	}
	return messages
}
