package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
	"github.com/facksten/PushRSP-Telegram-bot/pkg/telemetry"
)

// DegradedReply is sent when no provider could answer.
const DegradedReply = "متأسفم، در پردازش پیام مشکلی پیش آمد. لطفاً دوباره تلاش کنید."

// Completer is the router surface the chat service needs.
type Completer interface {
	Complete(ctx context.Context, history []conversation.Turn, prompt string, preferred llm.Kind) (*llm.Result, error)
}

// Contexts is the conversation context surface the chat service needs.
type Contexts interface {
	Append(ctx context.Context, key conversation.Key, role conversation.Role, text string) error
	GetContext(ctx context.Context, key conversation.Key) []conversation.Turn
	Clear(ctx context.Context, key conversation.Key) error
}

// Reply is what the user gets back.
type Reply struct {
	Text      string
	Provider  llm.Kind
	Fallbacks int
	Degraded  bool
}

type Service struct {
	contexts  Contexts
	router    Completer
	sanitizer *telemetry.Sanitizer
	log       zerolog.Logger
	replies   metric.Int64Counter

	mu        sync.Mutex
	exchanges map[conversation.Key]*exchange
}

// exchange serializes the replies of one conversation.
type exchange struct {
	slot    chan struct{}
	waiters int
}

func NewService(contexts Contexts, router Completer, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *Service {
	replies, err := otel.Meter("pushtutor/chat").Int64Counter("pushtutor.chat.replies",
		metric.WithDescription("Chat replies by provider and outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("chat reply counter unavailable")
	}
	return &Service{
		contexts:  contexts,
		router:    router,
		sanitizer: sanitizer,
		log:       log.With().Str("component", "chat").Logger(),
		replies:   replies,
		exchanges: make(map[conversation.Key]*exchange),
	}
}

// Reply answers text within the conversation key. The user turn is recorded only together
// with an answer, so a failed exchange leaves the context unchanged. Provider exhaustion is
// reported as a degraded reply, not an error. Replies in one conversation run one at a time,
// so each answer sees the previous exchange in its history.
func (s *Service) Reply(ctx context.Context, key conversation.Key, userID int64, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message is empty", nil, "")
	}

	s.log.Info().
		Str("conversation", string(key)).
		Str("user", s.sanitizer.SanitizeUserID(userID)).
		Str("text", s.sanitizer.SanitizeText(text)).
		Msg("chat message received")

	release, err := s.begin(ctx, key)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "interrupted while waiting for the conversation")
	}
	defer release()

	history := s.contexts.GetContext(ctx, key)
	result, err := s.router.Complete(ctx, history, text, "")
	if err != nil {
		var failed *llm.AllProvidersFailedError
		if errors.As(err, &failed) {
			if platformerrors.IsErrorType(failed.LastErr, platformerrors.ErrorTypeCancelled) {
				return nil, failed.LastErr
			}
			s.log.Error().Err(err).Str("conversation", string(key)).Msg("no provider answered")
			s.count(ctx, "", "degraded")
			return &Reply{Text: DegradedReply, Degraded: true, Fallbacks: len(failed.Attempts)}, nil
		}
		return nil, err
	}

	if err := s.contexts.Append(ctx, key, conversation.RoleUser, text); err != nil {
		return nil, err
	}
	if err := s.contexts.Append(ctx, key, conversation.RoleAssistant, result.Text); err != nil {
		return nil, err
	}

	s.count(ctx, result.Provider, "success")
	s.log.Info().
		Str("conversation", string(key)).
		Str("provider", string(result.Provider)).
		Int("fallbacks", len(result.Failed)).
		Int("chars", len(result.Text)).
		Msg("chat reply sent")
	return &Reply{Text: result.Text, Provider: result.Provider, Fallbacks: len(result.Failed)}, nil
}

// Clear forgets the conversation.
func (s *Service) Clear(ctx context.Context, key conversation.Key) error {
	return s.contexts.Clear(ctx, key)
}

// TurnCount returns the number of turns held for key.
func (s *Service) TurnCount(ctx context.Context, key conversation.Key) int {
	return len(s.contexts.GetContext(ctx, key))
}

// begin waits for the conversation's exchange slot and returns its release func.
func (s *Service) begin(ctx context.Context, key conversation.Key) (func(), error) {
	s.mu.Lock()
	ex, ok := s.exchanges[key]
	if !ok {
		ex = &exchange{slot: make(chan struct{}, 1)}
		s.exchanges[key] = ex
	}
	ex.waiters++
	s.mu.Unlock()

	leave := func() {
		s.mu.Lock()
		ex.waiters--
		if ex.waiters == 0 {
			delete(s.exchanges, key)
		}
		s.mu.Unlock()
	}

	select {
	case ex.slot <- struct{}{}:
		return func() {
			<-ex.slot
			leave()
		}, nil
	case <-ctx.Done():
		leave()
		return nil, ctx.Err()
	}
}

func (s *Service) count(ctx context.Context, provider llm.Kind, outcome string) {
	if s.replies == nil {
		return
	}
	s.replies.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("outcome", outcome),
	))
}
