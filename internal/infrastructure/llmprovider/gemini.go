package llmprovider

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
)

// Gemini calls the Gemini Developer API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ llm.Provider = (*Gemini)(nil)

func NewGemini(ctx context.Context, entry config.ProviderEntry) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:  entry.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if entry.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: entry.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: entry.Model}, nil
}

func (p *Gemini) Kind() llm.Kind { return llm.KindGemini }
func (p *Gemini) Model() string  { return p.model }

func (p *Gemini) Complete(ctx context.Context, req llm.Request) (string, error) {
	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, geminiContents(req), cfg)
	if err != nil {
		return "", geminiError(ctx, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func geminiContents(req llm.Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

func geminiError(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(ctx, llm.KindGemini, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return statusError(ctx, llm.KindGemini, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return transportError(ctx, llm.KindGemini, err)
}
