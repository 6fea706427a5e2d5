package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/metrics"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/observability"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// RouterOptions holds the static parameters applied to every request.
type RouterOptions struct {
	DefaultProvider Kind
	SystemPrompt    string
	Timeout         time.Duration
	Temperature     float64
	MaxTokens       int
	// Credentials maps provider kind to the name of the variable holding its key.
	Credentials map[Kind]string
}

// Result is a successful completion together with the failures that preceded it.
type Result struct {
	Text     string
	Provider Kind
	Failed   []Attempt
}

// Router dispatches a prompt to the first provider that answers. It does not own any
// conversation state; callers append the returned text to their context.
type Router struct {
	providers map[Kind]Provider
	order     []Kind
	repo      ConfigRepository
	opts      RouterOptions
	log       zerolog.Logger
	tracer    trace.Tracer

	mu     sync.RWMutex
	active Kind
}

// NewRouter registers providers in FallbackOrder. repo may be nil.
func NewRouter(providers []Provider, repo ConfigRepository, opts RouterOptions, log zerolog.Logger) *Router {
	byKind := make(map[Kind]Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			byKind[p.Kind()] = p
		}
	}
	order := make([]Kind, 0, len(byKind))
	for _, k := range FallbackOrder {
		if _, ok := byKind[k]; ok {
			order = append(order, k)
		}
	}

	r := &Router{
		providers: byKind,
		order:     order,
		repo:      repo,
		opts:      opts,
		log:       log.With().Str("component", "llm-router").Logger(),
		tracer:    otel.Tracer("pushtutor/llm"),
	}
	if _, ok := byKind[opts.DefaultProvider]; ok {
		r.active = opts.DefaultProvider
	} else if len(order) > 0 {
		r.active = order[0]
	}
	return r
}

// Init records provider availability and restores a previously persisted active provider.
func (r *Router) Init(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	configs := make([]ProviderConfig, 0, len(FallbackOrder))
	for _, k := range FallbackOrder {
		p, ok := r.providers[k]
		cfg := ProviderConfig{Name: k, CredentialRef: r.opts.Credentials[k], Available: ok}
		if ok {
			cfg.Model = p.Model()
		}
		configs = append(configs, cfg)
	}
	if err := r.repo.Sync(ctx, configs); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to sync provider configs")
	}

	persisted, err := r.repo.FindActive(ctx)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load active provider")
	}
	if persisted != nil {
		if _, ok := r.providers[persisted.Name]; ok {
			r.mu.Lock()
			r.active = persisted.Name
			r.mu.Unlock()
			return nil
		}
	}
	if active := r.Active(); active != "" {
		if err := r.repo.SetActive(ctx, active); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist active provider")
		}
	}
	return nil
}

// Active returns the provider tried first when no preference is given.
func (r *Router) Active() Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Available lists registered providers in fallback order.
func (r *Router) Available() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Model returns the model configured for a registered provider.
func (r *Router) Model(kind Kind) string {
	if p, ok := r.providers[kind]; ok {
		return p.Model()
	}
	return ""
}

// SetActive switches the active provider. It affects only requests that start afterwards.
func (r *Router) SetActive(ctx context.Context, name string) error {
	kind, ok := ParseKind(name)
	if !ok {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"unknown provider", nil, "f1a3c5e7-0b2d-4f6a-8c1e-3a5c7e9b1d3f", map[string]any{"provider": name})
	}
	if _, registered := r.providers[kind]; !registered {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"provider has no credentials configured", nil, "a7c9e1b3-5d7f-4a2c-9e4b-6d8f0a2c4e6a", map[string]any{"provider": name})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.repo != nil {
		if err := r.repo.SetActive(ctx, kind); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist active provider")
		}
	}
	previous := r.active
	r.active = kind
	r.log.Info().Str("from", string(previous)).Str("to", string(kind)).Msg("active provider changed")
	return nil
}

// Complete sends prompt with history to providers in preference order until one succeeds.
// preferred may be empty.
func (r *Router) Complete(ctx context.Context, history []conversation.Turn, prompt string, preferred Kind) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "prompt is empty", nil, "b3d5f7a9-1c3e-4a5b-8d7f-9a1c3e5b7d9f")
	}

	req := Request{
		SystemPrompt: r.opts.SystemPrompt,
		History:      usableTurns(history),
		Prompt:       prompt,
		Temperature:  r.opts.Temperature,
		MaxTokens:    r.opts.MaxTokens,
	}

	ctx, span := r.tracer.Start(ctx, "llm.Router.Complete")
	defer span.End()

	var failed []Attempt
	var lastErr error
	for _, kind := range r.candidates(preferred) {
		if err := ctx.Err(); err != nil {
			lastErr = platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "completion cancelled")
			break
		}

		text, attempt := r.attempt(ctx, r.providers[kind], req)
		if attempt.Err == nil {
			span.SetAttributes(attribute.String("llm.provider", string(kind)), attribute.Int("llm.fallbacks", len(failed)))
			return &Result{Text: text, Provider: kind, Failed: failed}, nil
		}

		failed = append(failed, attempt)
		lastErr = attempt.Err
		event := r.log.Warn()
		if platformerrors.IsErrorType(attempt.Err, platformerrors.ErrorTypeUnauthorized) {
			event = r.log.Error()
		}
		event.Err(attempt.Err).
			Str("provider", string(kind)).
			Str("error_type", string(platformerrors.TypeOf(attempt.Err))).
			Dur("duration", attempt.Duration).
			Msg("provider failed, falling back")
	}

	if lastErr == nil {
		lastErr = platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "no LLM provider is configured", nil, "c5e7a9b1-3d5f-4c7e-9a1b-3c5e7a9b1d3f")
	}
	observability.RecordError(ctx, lastErr, "all providers failed")
	return nil, &AllProvidersFailedError{Attempts: failed, LastErr: lastErr}
}

func (r *Router) attempt(ctx context.Context, provider Provider, req Request) (string, Attempt) {
	kind := provider.Kind()
	callCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := provider.Complete(callCtx, req)
	duration := time.Since(start)

	if err == nil && strings.TrimSpace(text) == "" {
		err = platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "provider returned an empty completion", nil, "d7f9b1c3-5e7a-4b9c-8d1e-5f7a9b1c3d5e")
	}
	if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTransient, "provider timed out", err, "e9b1d3f5-7a9c-4e1a-8f3b-7c9e1a3d5f7b")
	}

	status := "ok"
	if err != nil {
		status = strings.ToLower(string(platformerrors.TypeOf(err)))
	}
	metrics.RecordProviderCall(string(kind), status, duration)

	return text, Attempt{Provider: kind, Err: err, Duration: duration}
}

// candidates orders registered providers: preferred, active, then the fixed fallback order.
func (r *Router) candidates(preferred Kind) []Kind {
	out := make([]Kind, 0, len(r.order))
	seen := make(map[Kind]struct{}, len(r.order))
	add := func(k Kind) {
		if _, ok := r.providers[k]; !ok {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	add(preferred)
	add(r.Active())
	for _, k := range r.order {
		add(k)
	}
	return out
}

func usableTurns(history []conversation.Turn) []conversation.Turn {
	out := make([]conversation.Turn, 0, len(history))
	for _, t := range history {
		if t.Empty() || t.Role == conversation.RoleSystem {
			continue
		}
		out = append(out, t)
	}
	return out
}
