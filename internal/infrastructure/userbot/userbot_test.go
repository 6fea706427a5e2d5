package userbot

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/retry"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

func TestToSourceMessages(t *testing.T) {
	date := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	res := &tg.MessagesChannelMessages{Messages: []tg.MessageClass{
		&tg.Message{ID: 12, Date: int(date.Unix()), Post: true, Message: "Go tips", Views: 40, Forwards: 2,
			Media: &tg.MessageMediaPhoto{}},
		&tg.Message{ID: 11, Date: int(date.Unix()), Message: "anonymous"},
		&tg.MessageService{ID: 10, Date: int(date.Unix())},
		&tg.MessageEmpty{ID: 9},
	}}

	got := toSourceMessages(historyMessages(res))

	require.Len(t, got, 4)
	assert.Equal(t, int64(12), got[0].ID)
	assert.True(t, got[0].HasSender)
	assert.Equal(t, date, got[0].Date)
	assert.Equal(t, int64(40), got[0].Views)
	assert.True(t, got[0].HasMedia)
	assert.Equal(t, "photo", got[0].MediaType)
	assert.False(t, got[1].HasSender)
	assert.False(t, got[2].HasSender)
	assert.Empty(t, got[3].Text)
}

func TestMediaType(t *testing.T) {
	video := &tg.MessageMediaDocument{Document: &tg.Document{MimeType: "video/mp4"}}
	pdf := &tg.MessageMediaDocument{Document: &tg.Document{MimeType: "application/pdf"}}
	assert.Equal(t, "video", mediaType(video))
	assert.Equal(t, "document", mediaType(pdf))
	assert.Equal(t, "other", mediaType(&tg.MessageMediaGeo{}))
}

func TestFindChannel(t *testing.T) {
	chats := []tg.ChatClass{&tg.Chat{ID: 5}, &tg.Channel{ID: 7, Title: "Go"}, &tg.Channel{ID: 8}}

	ch, ok := findChannel(chats, 0)
	require.True(t, ok)
	assert.Equal(t, int64(7), ch.ID)

	ch, ok = findChannel(chats, 8)
	require.True(t, ok)
	assert.Equal(t, int64(8), ch.ID)

	_, ok = findChannel(chats, 5)
	assert.False(t, ok)
}

func TestBareChannelID(t *testing.T) {
	assert.Equal(t, int64(1234567890), bareChannelID(-1001234567890))
	assert.Equal(t, int64(42), bareChannelID(42))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	flood := classify(ctx, "gochan", tgerr.New(420, "FLOOD_WAIT_7"))
	assert.True(t, platformerrors.IsErrorType(flood, platformerrors.ErrorTypeQuotaExceeded))
	var hint retry.Hint
	require.True(t, errors.As(flood, &hint))
	assert.Equal(t, 7*time.Second, hint.RetryAfter())

	unauthorized := classify(ctx, "gochan", tgerr.New(401, "AUTH_KEY_UNREGISTERED"))
	assert.True(t, platformerrors.IsErrorType(unauthorized, platformerrors.ErrorTypeUnauthorized))

	private := classify(ctx, "gochan", tgerr.New(400, "CHANNEL_PRIVATE"))
	assert.True(t, platformerrors.IsErrorType(private, platformerrors.ErrorTypeNotFound))

	server := classify(ctx, "gochan", tgerr.New(500, "INTERNAL"))
	assert.True(t, platformerrors.IsErrorType(server, platformerrors.ErrorTypeTransient))

	network := classify(ctx, "gochan", errors.New("connection reset"))
	assert.True(t, platformerrors.IsRetryable(network))

	assert.NoError(t, classify(ctx, "gochan", nil))
}

func TestTerminalAuthPrompts(t *testing.T) {
	var out strings.Builder
	a := terminalAuth{in: bufio.NewReader(strings.NewReader("+100200\n 12345 \n")), out: &out}

	phone, err := a.Phone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+100200", phone)

	code, err := a.Code(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "12345", code)
	assert.Contains(t, out.String(), "Login code: ")

	preset := terminalAuth{phone: "+1", in: bufio.NewReader(strings.NewReader("")), out: &out}
	phone, err = preset.Phone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+1", phone)
}

func TestFetchBeforeRunHonoursContext(t *testing.T) {
	c := &Client{ready: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "gochan", 0, 10)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTransient))
}
