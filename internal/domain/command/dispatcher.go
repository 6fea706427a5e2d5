// Package command maps bot commands onto domain operations.
package command

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/metrics"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// MaxMessageLength is the largest chunk sent as one Telegram message.
const MaxMessageLength = 4000

// ForwardedChat describes the channel a message was forwarded from.
type ForwardedChat struct {
	ID       int64
	Username string
	Title    string
	Caption  string
}

// Request is one parsed command invocation.
type Request struct {
	ChatID int64
	UserID int64
	Name   string
	Args   []string
	// ReplyTo is the channel behind a forwarded post: the one replied to, or the post itself.
	ReplyTo *ForwardedChat
	// Notify sends a follow-up message to the same chat; it may be nil.
	Notify func(text string)
}

// Arg returns the i-th argument or "".
func (r Request) Arg(i int) string {
	if i < len(r.Args) {
		return r.Args[i]
	}
	return ""
}

// Rest joins the arguments from i on.
func (r Request) Rest(i int) string {
	if i >= len(r.Args) {
		return ""
	}
	return strings.Join(r.Args[i:], " ")
}

type Handler func(ctx context.Context, req Request) (string, error)

type Command struct {
	Name        string
	Aliases     []string
	AdminOnly   bool
	Usage       string
	Description string
	Handler     Handler
}

// Dispatcher routes commands through an explicit table and enforces the admin allowlist.
type Dispatcher struct {
	commands map[string]*Command
	ordered  []*Command
	isAdmin  func(userID int64) bool
	log      zerolog.Logger
}

func NewDispatcher(isAdmin func(userID int64) bool, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		commands: make(map[string]*Command),
		isAdmin:  isAdmin,
		log:      log.With().Str("component", "commands").Logger(),
	}
}

func (d *Dispatcher) Register(cmd Command) {
	c := cmd
	d.ordered = append(d.ordered, &c)
	d.commands[c.Name] = &c
	for _, alias := range c.Aliases {
		d.commands[alias] = &c
	}
}

// Commands lists registered commands, user commands first, each group by name.
func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, len(d.ordered))
	copy(out, d.ordered)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AdminOnly != out[j].AdminOnly {
			return !out[i].AdminOnly
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// IsAdmin reports whether userID is on the allowlist.
func (d *Dispatcher) IsAdmin(userID int64) bool {
	return d.isAdmin != nil && d.isAdmin(userID)
}

// Dispatch runs the command and returns the reply split into sendable chunks. Domain errors
// that a user can act on become reply text; anything else is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) ([]string, error) {
	cmd, ok := d.commands[req.Name]
	if !ok {
		metrics.RecordCommand("unknown", "ignored")
		return Split("Unknown command /"+req.Name+". Send /help for the list.", MaxMessageLength), nil
	}
	if cmd.AdminOnly && !d.IsAdmin(req.UserID) {
		metrics.RecordCommand(cmd.Name, "forbidden")
		d.log.Warn().Str("command", cmd.Name).Int64("user_id", req.UserID).Msg("admin command refused")
		return Split("This command is available to admins only.", MaxMessageLength), nil
	}

	text, err := cmd.Handler(ctx, req)
	if err != nil {
		if reply, handled := userFacing(err); handled {
			metrics.RecordCommand(cmd.Name, "rejected")
			return Split(reply, MaxMessageLength), nil
		}
		metrics.RecordCommand(cmd.Name, "error")
		return nil, err
	}
	metrics.RecordCommand(cmd.Name, "success")
	return Split(text, MaxMessageLength), nil
}

// usageError is returned by handlers when arguments are missing or malformed.
type usageError struct {
	usage string
}

func (e *usageError) Error() string { return "usage: " + e.usage }

func usage(cmd string) error {
	return &usageError{usage: cmd}
}

func userFacing(err error) (string, bool) {
	var u *usageError
	if errors.As(err, &u) {
		return "Usage: " + u.usage, true
	}
	var message string
	var pe *platformerrors.PlatformError
	if errors.As(err, &pe) {
		message = pe.Message
	}
	switch platformerrors.TypeOf(err) {
	case platformerrors.ErrorTypeNotFound:
		return "Not found: " + message, true
	case platformerrors.ErrorTypeValidation, platformerrors.ErrorTypeConflict:
		return message, true
	case platformerrors.ErrorTypeForbidden:
		return "This command is available to admins only.", true
	default:
		return "", false
	}
}

// Parse splits "/cmd@bot arg1 arg2" into a lowercase name and its arguments.
func Parse(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// Split breaks text into chunks of at most limit bytes, preferring line boundaries and never
// cutting inside a UTF-8 sequence.
func Split(text string, limit int) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	var chunks []string
	var current strings.Builder
	flush := func() {
		if chunk := strings.TrimRight(current.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if current.Len()+len(line) <= limit {
			current.WriteString(line)
			continue
		}
		flush()
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}
