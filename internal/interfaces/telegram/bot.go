// Package telegram connects the public bot account to the command dispatcher and the chat
// service over long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/chat"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/command"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/metrics"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
	"github.com/facksten/PushRSP-Telegram-bot/internal/worker"
)

const (
	pollTimeoutSeconds = 60
	maxSendRetryAfter  = 30 * time.Second
	internalErrorText  = "Something went wrong. Please try again later."
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) ([]string, error)
}

type Replier interface {
	Reply(ctx context.Context, key conversation.Key, userID int64, text string) (*chat.Reply, error)
}

type Submitter interface {
	Submit(ctx context.Context, task worker.Task) error
}

type Bot struct {
	api      API
	username string
	commands Dispatcher
	chat     Replier
	pool     Submitter
	log      zerolog.Logger
}

// NewBotAPI authenticates the token with getMe and routes the library's own logging through log.
func NewBotAPI(token string, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	_ = tgbotapi.SetLogger(botLogger{log: log.With().Str("component", "tgbotapi").Logger()})
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized,
			"telegram rejected the bot token", err, "")
	}
	return api, nil
}

func NewBot(api API, username string, commands Dispatcher, replier Replier, pool Submitter, log zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		username: username,
		commands: commands,
		chat:     replier,
		pool:     pool,
		log:      log.With().Str("component", "telegram").Logger(),
	}
}

// Run polls for updates until ctx is cancelled. Each update is handled on the worker pool.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)
	b.log.Info().Str("username", b.username).Msg("bot polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info().Msg("bot polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.enqueue(ctx, update)
		}
	}
}

func (b *Bot) enqueue(ctx context.Context, update tgbotapi.Update) {
	in := Classify(update, b.username)
	if in.Kind == KindIgnore {
		return
	}
	task := worker.Task{
		Name: fmt.Sprintf("telegram %s %d", in.Kind, update.UpdateID),
		Run: func(ctx context.Context) error {
			ctx = context.WithValue(ctx, platformerrors.RequestIDKey{}, fmt.Sprintf("update-%d", update.UpdateID))
			return b.Handle(ctx, in)
		},
	}
	if err := b.pool.Submit(ctx, task); err != nil && !errors.Is(err, context.Canceled) {
		b.log.Warn().Err(err).Int("update_id", update.UpdateID).Msg("dropping update")
	}
}

// Handle processes one classified update and sends the replies.
func (b *Bot) Handle(ctx context.Context, in Inbound) error {
	metrics.UpdatesInFlight.Inc()
	defer metrics.UpdatesInFlight.Dec()

	switch in.Kind {
	case KindCommand:
		return b.handleCommand(ctx, in, in.Command, in.Args, in.ReplyTo)
	case KindForward:
		var reason []string
		if in.Forwarded.Caption != "" {
			reason = strings.Fields(in.Forwarded.Caption)
		}
		return b.handleCommand(ctx, in, "suggest", reason, in.Forwarded)
	case KindChat:
		return b.handleChat(ctx, in)
	default:
		return nil
	}
}

func (b *Bot) handleCommand(ctx context.Context, in Inbound, name string, args []string, replyTo *command.ForwardedChat) error {
	out, err := b.commands.Dispatch(ctx, command.Request{
		ChatID:  in.ChatID,
		UserID:  in.UserID,
		Name:    name,
		Args:    args,
		ReplyTo: replyTo,
		Notify: func(text string) {
			b.send(context.WithoutCancel(ctx), in.ChatID, 0, text)
		},
	})
	if err != nil {
		b.reply(ctx, in, internalErrorText)
		return platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "command /"+name+" failed")
	}
	for _, text := range out {
		b.reply(ctx, in, text)
	}
	return nil
}

func (b *Bot) handleChat(ctx context.Context, in Inbound) error {
	if _, err := b.api.Request(tgbotapi.NewChatAction(in.ChatID, tgbotapi.ChatTyping)); err != nil {
		b.log.Debug().Err(err).Int64("chat_id", in.ChatID).Msg("typing action failed")
	}

	reply, err := b.chat.Reply(ctx, conversation.KeyFor(in.ChatID, in.UserID), in.UserID, in.Text)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeCancelled) {
			return err
		}
		b.reply(ctx, in, chat.DegradedReply)
		return err
	}
	b.reply(ctx, in, reply.Text)
	return nil
}

func (b *Bot) reply(ctx context.Context, in Inbound, text string) {
	replyTo := 0
	if !in.Private {
		replyTo = in.MessageID
	}
	b.send(ctx, in.ChatID, replyTo, text)
}

// send delivers text in chunks no longer than a Telegram message. Only the first chunk
// quotes replyTo. A flood-wait answer is honoured once per chunk.
func (b *Bot) send(ctx context.Context, chatID int64, replyTo int, text string) {
	for i, chunk := range command.Split(text, command.MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == 0 {
			msg.ReplyToMessageID = replyTo
		}
		msg.DisableWebPagePreview = true

		_, err := b.api.Send(msg)
		if wait, ok := retryAfter(err); ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			_, err = b.api.Send(msg)
		}
		if err != nil {
			b.log.Error().Err(err).Int64("chat_id", chatID).Int("chunk", i).Msg("failed to send message")
			return
		}
	}
}

func retryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
		return 0, false
	}
	wait := time.Duration(apiErr.RetryAfter) * time.Second
	if wait > maxSendRetryAfter {
		return 0, false
	}
	return wait, true
}

// botLogger adapts zerolog to tgbotapi.BotLogger.
type botLogger struct {
	log zerolog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.log.Debug().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}
