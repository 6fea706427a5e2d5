package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/chat"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/command"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/worker"
)

const botName = "PushTutorBot"

func privateMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		Text:      text,
	}}
}

func groupMessage(text string) tgbotapi.Update {
	u := privateMessage(text)
	u.Message.Chat = &tgbotapi.Chat{ID: -500, Type: "supergroup"}
	return u
}

func TestClassify(t *testing.T) {
	forward := privateMessage("")
	forward.Message.ForwardFromChat = &tgbotapi.Chat{ID: -1001, Type: "channel", UserName: "GoDaily", Title: "Go Daily"}
	forward.Message.Caption = "  weekly tips "

	userForward := privateMessage("hello")
	userForward.Message.ForwardFromChat = &tgbotapi.Chat{ID: 7, Type: "private"}

	replyToBot := groupMessage("and then?")
	replyToBot.Message.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: 1, IsBot: true, UserName: botName}}

	tests := []struct {
		name   string
		update tgbotapi.Update
		kind   Kind
		text   string
	}{
		{"no message", tgbotapi.Update{}, KindIgnore, ""},
		{"private text", privateMessage("  what is a goroutine? "), KindChat, "what is a goroutine?"},
		{"private blank", privateMessage("   "), KindIgnore, ""},
		{"command", privateMessage("/Search go"), KindCommand, ""},
		{"command for us in group", groupMessage("/help@pushtutorbot"), KindCommand, ""},
		{"command for another bot", groupMessage("/help@otherbot"), KindIgnore, ""},
		{"channel forward", forward, KindForward, ""},
		{"forward from a user is chat", userForward, KindChat, "hello"},
		{"group without mention", groupMessage("hello all"), KindIgnore, ""},
		{"group mention", groupMessage("@PushTutorBot explain channels"), KindChat, "explain channels"},
		{"group reply to bot", replyToBot, KindChat, "and then?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Classify(tt.update, botName)
			assert.Equal(t, tt.kind, in.Kind)
			assert.Equal(t, tt.text, in.Text)
		})
	}

	in := Classify(forward, botName)
	require.NotNil(t, in.Forwarded)
	assert.Equal(t, "GoDaily", in.Forwarded.Username)
	assert.Equal(t, "weekly tips", in.Forwarded.Caption)

	in = Classify(privateMessage("/Search go channels"), botName)
	assert.Equal(t, "search", in.Command)
	assert.Equal(t, []string{"go", "channels"}, in.Args)
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	actions int
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type fakeDispatcher struct {
	last command.Request
	out  []string
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req command.Request) ([]string, error) {
	f.last = req
	if req.Notify != nil {
		req.Notify("follow-up")
	}
	return f.out, f.err
}

type fakeReplier struct {
	key   conversation.Key
	reply *chat.Reply
	err   error
}

func (f *fakeReplier) Reply(_ context.Context, key conversation.Key, _ int64, _ string) (*chat.Reply, error) {
	f.key = key
	return f.reply, f.err
}

type inlinePool struct{}

func (inlinePool) Submit(ctx context.Context, task worker.Task) error { return task.Run(ctx) }

func newBot(d *fakeDispatcher, r *fakeReplier) (*Bot, *fakeAPI) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	return NewBot(api, botName, d, r, inlinePool{}, zerolog.Nop()), api
}

func TestHandleCommandSendsOutputAndNotifications(t *testing.T) {
	d := &fakeDispatcher{out: []string{"first", "second"}}
	bot, api := newBot(d, &fakeReplier{})

	in := Classify(privateMessage("/stats"), botName)
	require.NoError(t, bot.Handle(context.Background(), in))

	assert.Equal(t, "stats", d.last.Name)
	assert.Equal(t, int64(42), d.last.UserID)
	assert.Equal(t, []string{"follow-up", "first", "second"}, api.texts())
}

func TestHandleCommandInternalError(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("db down")}
	bot, api := newBot(d, &fakeReplier{})

	err := bot.Handle(context.Background(), Classify(privateMessage("/status"), botName))
	require.Error(t, err)
	assert.Contains(t, api.texts(), internalErrorText)
}

func TestHandleForwardSuggestsChannel(t *testing.T) {
	d := &fakeDispatcher{out: []string{"thanks"}}
	bot, _ := newBot(d, &fakeReplier{})

	update := privateMessage("")
	update.Message.ForwardFromChat = &tgbotapi.Chat{ID: -1001, Type: "channel", Title: "Go Daily"}
	update.Message.Caption = "great posts"
	require.NoError(t, bot.Handle(context.Background(), Classify(update, botName)))

	assert.Equal(t, "suggest", d.last.Name)
	assert.Equal(t, []string{"great", "posts"}, d.last.Args)
	require.NotNil(t, d.last.ReplyTo)
	assert.Equal(t, int64(-1001), d.last.ReplyTo.ID)
}

func TestHandleChatSplitsLongReplies(t *testing.T) {
	long := strings.Repeat("x", command.MaxMessageLength+10)
	r := &fakeReplier{reply: &chat.Reply{Text: long}}
	bot, api := newBot(&fakeDispatcher{}, r)

	require.NoError(t, bot.Handle(context.Background(), Classify(groupMessage("@PushTutorBot hi"), botName)))

	assert.Equal(t, conversation.KeyFor(-500, 42), r.key)
	assert.Equal(t, 1, api.actions)
	require.Len(t, api.sent, 2)
	assert.Equal(t, 10, api.sent[0].ReplyToMessageID)
	assert.Equal(t, 0, api.sent[1].ReplyToMessageID)
	assert.Len(t, api.sent[0].Text+api.sent[1].Text, len(long))
}

func TestHandleChatFailureSendsApology(t *testing.T) {
	r := &fakeReplier{err: errors.New("boom")}
	bot, api := newBot(&fakeDispatcher{}, r)

	require.Error(t, bot.Handle(context.Background(), Classify(privateMessage("hi"), botName)))
	assert.Equal(t, []string{chat.DegradedReply}, api.texts())
}

func TestRunStopsOnCancel(t *testing.T) {
	d := &fakeDispatcher{out: []string{"pong"}}
	bot, api := newBot(d, &fakeReplier{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	api.updates <- privateMessage("/ping")
	cancel()
	require.NoError(t, <-done)
	assert.True(t, api.stopped)
	assert.Equal(t, []string{"follow-up", "pong"}, api.texts())
}

func TestRetryAfter(t *testing.T) {
	_, ok := retryAfter(errors.New("plain"))
	assert.False(t, ok)

	wait, ok := retryAfter(&tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}})
	assert.True(t, ok)
	assert.Equal(t, 3, int(wait.Seconds()))

	_, ok = retryAfter(&tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 600}})
	assert.False(t, ok)
}
