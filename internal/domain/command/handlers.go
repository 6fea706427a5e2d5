package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const (
	DefaultIndexLimit    = 1000
	DefaultIndexAllLimit = 500
	publicChannelLimit   = 15
	lookupTimeout        = 15 * time.Second
)

type Channels interface {
	Suggest(ctx context.Context, input channel.SuggestInput) (*channel.Channel, bool, error)
	Add(ctx context.Context, input channel.AddInput) (*channel.Channel, error)
	Approve(ctx context.Context, id uint, adminID int64, note string) (*channel.Channel, error)
	Reject(ctx context.Context, id uint, adminID int64, note string) (*channel.Channel, error)
	Resubmit(ctx context.Context, id uint, adminID int64) (*channel.Channel, error)
	UpdateMetadata(ctx context.Context, id uint, adminID int64, input channel.MetadataInput) (*channel.Channel, error)
	Resolve(ctx context.Context, ref string) (*channel.Channel, error)
	List(ctx context.Context, filter channel.ListFilter) ([]*channel.Channel, error)
	ListApproved(ctx context.Context) ([]*channel.Channel, error)
	ListPending(ctx context.Context) ([]*channel.Channel, error)
	CountByStatus(ctx context.Context) (map[channel.Status]int64, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, filter search.Filter) ([]search.RankedMessage, error)
}

type Indexer interface {
	Index(ctx context.Context, ref string, limit int) (*indexer.Report, error)
	IndexAll(ctx context.Context, limit int) ([]indexer.RunResult, error)
	Cancel(ctx context.Context, ref string) (bool, error)
	Running() []uint
}

type Providers interface {
	Active() llm.Kind
	Available() []llm.Kind
	Model(kind llm.Kind) string
	SetActive(ctx context.Context, name string) error
}

type Conversations interface {
	Clear(ctx context.Context, key conversation.Key) error
	TurnCount(ctx context.Context, key conversation.Key) int
}

type ConversationStats interface {
	Stats() conversation.Stats
}

type MessageCounter interface {
	Count(ctx context.Context) (int64, error)
}

// ChannelLookup asks Telegram for a channel's title and username.
type ChannelLookup interface {
	ChannelInfo(ctx context.Context, ref string) (title, username string, err error)
}

// Runner executes long jobs outside the update that started them.
type Runner interface {
	Go(name string, fn func(ctx context.Context))
}

// Handlers implements every bot command on top of the domain services.
type Handlers struct {
	Channels      Channels
	Search        Searcher
	Indexer       Indexer
	Providers     Providers
	Conversations Conversations
	Stats         ConversationStats
	Messages      MessageCounter
	Runner        Runner
	// Lookup is nil when no userbot session is configured.
	Lookup ChannelLookup
	// IndexerEnabled is false when no userbot session is configured.
	IndexerEnabled bool
}

// Register installs the command table on d.
func (h *Handlers) Register(d *Dispatcher) {
	help := func(ctx context.Context, req Request) (string, error) {
		return helpText(d.Commands(), d.IsAdmin(req.UserID)), nil
	}

	d.Register(Command{Name: "start", Description: "introduction", Handler: h.start})
	d.Register(Command{Name: "help", Aliases: []string{"h3lp"}, Description: "this list", Handler: help})
	d.Register(Command{Name: "search", Aliases: []string{"s34rch"}, Usage: "/search [#topic] <query>", Description: "search indexed channels", Handler: h.search})
	d.Register(Command{Name: "channels", Aliases: []string{"ch4nn3ls"}, Description: "curated channels", Handler: h.channels})
	d.Register(Command{Name: "suggest", Usage: "/suggest <@channel|link> [reason]", Description: "suggest a channel", Handler: h.suggest})
	d.Register(Command{Name: "clear", Description: "forget this conversation", Handler: h.clear})
	d.Register(Command{Name: "stats", Description: "statistics", Handler: h.stats})

	d.Register(Command{Name: "status", AdminOnly: true, Description: "bot status", Handler: h.status})
	d.Register(Command{Name: "addchannel", AdminOnly: true, Usage: "/addchannel <@channel|link> [title]", Description: "add an approved channel", Handler: h.addChannel})
	d.Register(Command{Name: "listchannels", AdminOnly: true, Description: "all channels with status", Handler: h.listChannels})
	d.Register(Command{Name: "removechannel", AdminOnly: true, Usage: "/removechannel <id>", Description: "remove a channel", Handler: h.removeChannel})
	d.Register(Command{Name: "suggestions", AdminOnly: true, Description: "pending suggestions", Handler: h.suggestions})
	d.Register(Command{Name: "approve", AdminOnly: true, Usage: "/approve <id>", Description: "approve a suggestion", Handler: h.approve})
	d.Register(Command{Name: "reject", AdminOnly: true, Usage: "/reject <id> [note]", Description: "reject a suggestion", Handler: h.reject})
	d.Register(Command{Name: "resubmit", AdminOnly: true, Usage: "/resubmit <id>", Description: "move a rejected channel back to pending", Handler: h.resubmit})
	d.Register(Command{Name: "settopics", AdminOnly: true, Usage: "/settopics <id> <topic,topic> [level] [fa|en|mixed]", Description: "tag a channel", Handler: h.setTopics})
	d.Register(Command{Name: "setprovider", AdminOnly: true, Usage: "/setprovider <name>", Description: "switch the active LLM provider", Handler: h.setProvider})
	d.Register(Command{Name: "indexchannel", AdminOnly: true, Usage: "/indexchannel <id|@channel> [limit]", Description: "index one channel", Handler: h.indexChannel})
	d.Register(Command{Name: "indexall", AdminOnly: true, Usage: "/indexall [limit]", Description: "index every approved channel", Handler: h.indexAll})
	d.Register(Command{Name: "cancelindex", AdminOnly: true, Usage: "/cancelindex <id|@channel>", Description: "stop a running index", Handler: h.cancelIndex})
}

func (h *Handlers) start(_ context.Context, _ Request) (string, error) {
	return "PushTutor is online.\n\n" +
		"Send any message and the tutor answers with the conversation so far in mind.\n" +
		"Use /search to find posts in curated learning channels and /help for all commands.", nil
}

func (h *Handlers) search(ctx context.Context, req Request) (string, error) {
	args := req.Args
	var filter search.Filter
	if len(args) > 0 && strings.HasPrefix(args[0], "#") {
		filter.Topic = strings.TrimPrefix(args[0], "#")
		args = args[1:]
	}
	query := strings.Join(args, " ")
	if strings.TrimSpace(query) == "" {
		return "", usage("/search [#topic] <query>")
	}
	results, err := h.Search.Search(ctx, query, filter)
	if err != nil {
		return "", err
	}
	return formatResults(query, results), nil
}

func (h *Handlers) channels(ctx context.Context, _ Request) (string, error) {
	channels, err := h.Channels.ListApproved(ctx)
	if err != nil {
		return "", err
	}
	return formatPublicChannels(channels, publicChannelLimit), nil
}

func (h *Handlers) suggest(ctx context.Context, req Request) (string, error) {
	input := channel.SuggestInput{SuggestedBy: req.UserID}
	switch {
	case req.ReplyTo != nil:
		input.Ref = forwardedRef(req.ReplyTo)
		input.Username = req.ReplyTo.Username
		input.Title = req.ReplyTo.Title
		input.Reason = req.Rest(0)
	case len(req.Args) > 0:
		input.Ref = req.Arg(0)
		input.Reason = req.Rest(1)
	default:
		return "", usage("/suggest <@channel|link> [reason], or forward a post from the channel")
	}
	return h.recordSuggestion(ctx, input)
}

func (h *Handlers) recordSuggestion(ctx context.Context, input channel.SuggestInput) (string, error) {
	ch, created, err := h.Channels.Suggest(ctx, input)
	if err != nil {
		return "", err
	}
	if !created {
		return fmt.Sprintf("%s is already waiting for review.", ch.DisplayName()), nil
	}
	return fmt.Sprintf("Thanks! %s was added to the suggestion queue and will be reviewed by an admin.", ch.DisplayName()), nil
}

func (h *Handlers) clear(ctx context.Context, req Request) (string, error) {
	if err := h.Conversations.Clear(ctx, conversation.KeyFor(req.ChatID, req.UserID)); err != nil {
		return "", err
	}
	return "Conversation cleared.", nil
}

func (h *Handlers) stats(ctx context.Context, req Request) (string, error) {
	approved, err := h.Channels.ListApproved(ctx)
	if err != nil {
		return "", err
	}
	stats := h.Stats.Stats()
	return formatKeyValues([][2]string{
		{"Channels", strconv.Itoa(len(approved))},
		{"Conversations", strconv.Itoa(stats.Conversations)},
		{"Your messages", strconv.Itoa(h.Conversations.TurnCount(ctx, conversation.KeyFor(req.ChatID, req.UserID)))},
	}), nil
}

func (h *Handlers) status(ctx context.Context, _ Request) (string, error) {
	counts, err := h.Channels.CountByStatus(ctx)
	if err != nil {
		return "", err
	}
	messages, err := h.Messages.Count(ctx)
	if err != nil {
		return "", err
	}
	stats := h.Stats.Stats()

	active := h.Providers.Active()
	available := h.Providers.Available()
	providers := make([]string, 0, len(available))
	for _, kind := range available {
		providers = append(providers, fmt.Sprintf("%s (%s)", kind, h.Providers.Model(kind)))
	}
	if active == "" {
		active = "none"
	}
	if len(providers) == 0 {
		providers = append(providers, "none")
	}
	indexing := "disabled"
	if h.IndexerEnabled {
		indexing = fmt.Sprintf("%d running", len(h.Indexer.Running()))
	}

	return formatKeyValues([][2]string{
		{"Active provider", string(active)},
		{"Providers", strings.Join(providers, ", ")},
		{"Approved channels", strconv.FormatInt(counts[channel.StatusApproved], 10)},
		{"Pending suggestions", strconv.FormatInt(counts[channel.StatusPending], 10)},
		{"Rejected channels", strconv.FormatInt(counts[channel.StatusRejected], 10)},
		{"Indexed messages", strconv.FormatInt(messages, 10)},
		{"Conversations", fmt.Sprintf("%d (%d turns)", stats.Conversations, stats.Turns)},
		{"Indexing", indexing},
	}), nil
}

func (h *Handlers) addChannel(ctx context.Context, req Request) (string, error) {
	input := channel.AddInput{AddedBy: req.UserID}
	switch {
	case req.ReplyTo != nil:
		input.Ref = forwardedRef(req.ReplyTo)
		input.Username = req.ReplyTo.Username
		input.Title = req.ReplyTo.Title
		input.Description = req.Rest(0)
	case len(req.Args) > 0:
		input.Ref = req.Arg(0)
		input.Title = req.Rest(1)
	default:
		return "", usage("/addchannel <@channel|link> [title], or reply to a forwarded post")
	}
	if input.Title == "" && h.Lookup != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		title, username, err := h.Lookup.ChannelInfo(lookupCtx, channel.NormalizeRef(input.Ref))
		cancel()
		switch {
		case err == nil:
			input.Title, input.Username = title, username
		case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
			return "", err
		}
	}
	ch, err := h.Channels.Add(ctx, input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Channel %s added (id %d).", ch.DisplayName(), ch.ID), nil
}

func (h *Handlers) listChannels(ctx context.Context, _ Request) (string, error) {
	channels, err := h.Channels.List(ctx, channel.ListFilter{})
	if err != nil {
		return "", err
	}
	return formatAdminChannels(channels), nil
}

func (h *Handlers) removeChannel(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Arg(0))
	if err != nil {
		return "", usage("/removechannel <id>")
	}
	ch, err := h.Channels.Reject(ctx, id, req.UserID, "removed by admin")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Channel %s removed.", ch.DisplayName()), nil
}

func (h *Handlers) suggestions(ctx context.Context, _ Request) (string, error) {
	pending, err := h.Channels.ListPending(ctx)
	if err != nil {
		return "", err
	}
	return formatSuggestions(pending), nil
}

func (h *Handlers) approve(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Arg(0))
	if err != nil {
		return "", usage("/approve <id>")
	}
	ch, err := h.Channels.Approve(ctx, id, req.UserID, req.Rest(1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Suggestion %d approved: %s is now searchable after indexing.", ch.ID, ch.DisplayName()), nil
}

func (h *Handlers) reject(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Arg(0))
	if err != nil {
		return "", usage("/reject <id> [note]")
	}
	ch, err := h.Channels.Reject(ctx, id, req.UserID, req.Rest(1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Suggestion %d rejected (%s).", ch.ID, ch.DisplayName()), nil
}

func (h *Handlers) resubmit(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Arg(0))
	if err != nil {
		return "", usage("/resubmit <id>")
	}
	ch, err := h.Channels.Resubmit(ctx, id, req.UserID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is pending review again.", ch.DisplayName()), nil
}

func (h *Handlers) setTopics(ctx context.Context, req Request) (string, error) {
	id, err := parseID(req.Arg(0))
	if err != nil || len(req.Args) < 2 {
		return "", usage("/settopics <id> <topic,topic> [level] [fa|en|mixed]")
	}
	ch, err := h.Channels.UpdateMetadata(ctx, id, req.UserID, channel.MetadataInput{
		Topics:   strings.Split(req.Arg(1), ","),
		Level:    channel.Level(strings.ToLower(req.Arg(2))),
		Language: strings.ToLower(req.Arg(3)),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s tagged: %s.", ch.DisplayName(), strings.Join(ch.Topics, ", ")), nil
}

func (h *Handlers) setProvider(ctx context.Context, req Request) (string, error) {
	available := kindNames(h.Providers.Available())
	if req.Arg(0) == "" {
		return fmt.Sprintf("Usage: /setprovider <name>\nAvailable: %s", available), nil
	}
	if err := h.Providers.SetActive(ctx, req.Arg(0)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Provider changed to %s.", h.Providers.Active()), nil
}

func (h *Handlers) indexChannel(ctx context.Context, req Request) (string, error) {
	if !h.IndexerEnabled {
		return "Indexing is disabled: no userbot session is configured.", nil
	}
	ref := req.Arg(0)
	if ref == "" {
		return "", usage("/indexchannel <id|@channel> [limit]")
	}
	limit, err := parseLimit(req.Arg(1), DefaultIndexLimit)
	if err != nil {
		return "", usage("/indexchannel <id|@channel> [limit]")
	}
	ch, err := h.Channels.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	h.Runner.Go("index "+ch.Ref, func(ctx context.Context) {
		report, err := h.Indexer.Index(ctx, ch.Ref, limit)
		notify(req, formatIndexOutcome(ch, report, err))
	})
	return fmt.Sprintf("Indexing %s (up to %s messages)...", ch.DisplayName(), limitText(limit)), nil
}

func (h *Handlers) indexAll(ctx context.Context, req Request) (string, error) {
	if !h.IndexerEnabled {
		return "Indexing is disabled: no userbot session is configured.", nil
	}
	limit, err := parseLimit(req.Arg(0), DefaultIndexAllLimit)
	if err != nil {
		return "", usage("/indexall [limit]")
	}

	h.Runner.Go("index all", func(ctx context.Context) {
		results, err := h.Indexer.IndexAll(ctx, limit)
		if err != nil {
			notify(req, "Indexing failed: "+err.Error())
			return
		}
		notify(req, formatIndexAll(results))
	})
	return fmt.Sprintf("Indexing all approved channels (up to %s messages each)...", limitText(limit)), nil
}

func (h *Handlers) cancelIndex(ctx context.Context, req Request) (string, error) {
	if req.Arg(0) == "" {
		return "", usage("/cancelindex <id|@channel>")
	}
	cancelled, err := h.Indexer.Cancel(ctx, req.Arg(0))
	if err != nil {
		return "", err
	}
	if !cancelled {
		return "No indexing run is active for that channel.", nil
	}
	return "Cancellation requested; messages already stored are kept.", nil
}

func notify(req Request, text string) {
	if req.Notify != nil {
		req.Notify(text)
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

// parseLimit accepts a non-negative integer; 0 means the whole history.
func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func limitText(limit int) string {
	if limit == 0 {
		return "all"
	}
	return strconv.Itoa(limit)
}

func forwardedRef(chat *ForwardedChat) string {
	if chat.Username != "" {
		return chat.Username
	}
	return strconv.FormatInt(chat.ID, 10)
}

func kindNames(kinds []llm.Kind) string {
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// durationText rounds to what an admin cares about.
func durationText(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
