package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/search python  tutorial", "search", []string{"python", "tutorial"}, true},
		{"/S34RCH@PushTutorBot go", "s34rch", []string{"go"}, true},
		{"  /clear", "clear", []string{}, true},
		{"hello", "", nil, false},
		{"/", "", nil, false},
		{"/@bot", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := Parse(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		if tt.ok {
			assert.Equal(t, tt.args, args, tt.in)
		}
	}
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("", 10))
	assert.Equal(t, []string{"short"}, Split("short\n", 10))
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, Split("aaaa\nbbbb\ncccc", 10))

	long := strings.Repeat("سلام ", 2000)
	chunks := Split(long, MaxMessageLength)
	require.Greater(t, len(chunks), 1)
	var total int
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), MaxMessageLength)
		assert.True(t, utf8.ValidString(c))
		total += len(c)
	}
	assert.Equal(t, len(strings.TrimRight(long, "\n")), total)
}

func newTestDispatcher() *Dispatcher {
	d := NewDispatcher(func(id int64) bool { return id == 1 }, zerolog.Nop())
	d.Register(Command{Name: "ping", Aliases: []string{"p1ng"}, Description: "pong", Handler: func(context.Context, Request) (string, error) {
		return "pong", nil
	}})
	d.Register(Command{Name: "secret", AdminOnly: true, Description: "admin", Handler: func(context.Context, Request) (string, error) {
		return "granted", nil
	}})
	d.Register(Command{Name: "fail", Handler: func(ctx context.Context, req Request) (string, error) {
		switch req.Arg(0) {
		case "missing":
			return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "channel not found", nil, "")
		case "conflict":
			return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "channel is already approved", nil, "")
		case "usage":
			return "", usage("/fail <mode>")
		default:
			return "", errors.New("database exploded")
		}
	}})
	return d
}

func TestDispatchRoutesAliases(t *testing.T) {
	d := newTestDispatcher()
	out, err := d.Dispatch(context.Background(), Request{Name: "p1ng", UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"pong"}, out)

	out, err = d.Dispatch(context.Background(), Request{Name: "nope", UserID: 5})
	require.NoError(t, err)
	assert.Contains(t, out[0], "Unknown command /nope")
}

func TestDispatchEnforcesAdminAllowlist(t *testing.T) {
	d := newTestDispatcher()

	out, err := d.Dispatch(context.Background(), Request{Name: "secret", UserID: 5})
	require.NoError(t, err)
	assert.Contains(t, out[0], "admins only")

	out, err = d.Dispatch(context.Background(), Request{Name: "secret", UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"granted"}, out)
}

func TestDispatchMapsErrors(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	out, err := d.Dispatch(ctx, Request{Name: "fail", Args: []string{"missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Not found: channel not found"}, out)

	out, err = d.Dispatch(ctx, Request{Name: "fail", Args: []string{"conflict"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"channel is already approved"}, out)

	out, err = d.Dispatch(ctx, Request{Name: "fail", Args: []string{"usage"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Usage: /fail <mode>"}, out)

	_, err = d.Dispatch(ctx, Request{Name: "fail"})
	assert.EqualError(t, err, "database exploded")
}

func TestHelpHidesAdminCommands(t *testing.T) {
	d := newTestDispatcher()
	user := helpText(d.Commands(), false)
	admin := helpText(d.Commands(), true)

	assert.Contains(t, user, "/ping - pong (also /p1ng)")
	assert.NotContains(t, user, "/secret")
	assert.Contains(t, admin, "Admin commands\n/secret - admin")
}
