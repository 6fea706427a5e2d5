package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/command"
)

// Kind tells the bot which path an update takes.
type Kind int

const (
	KindIgnore Kind = iota
	KindCommand
	KindForward
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindForward:
		return "forward"
	case KindChat:
		return "chat"
	default:
		return "ignore"
	}
}

// Inbound is a Telegram update reduced to what the domain needs.
type Inbound struct {
	Kind      Kind
	ChatID    int64
	UserID    int64
	MessageID int
	Private   bool
	Text      string
	Command   string
	Args      []string
	ReplyTo   *command.ForwardedChat
	Forwarded *command.ForwardedChat
}

// Classify maps an update to its Inbound form. Edits, callbacks and messages without a
// sender are ignored. In groups the bot only answers commands addressed to it and messages
// that mention or reply to it.
func Classify(update tgbotapi.Update, botUsername string) Inbound {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Inbound{Kind: KindIgnore}
	}
	in := Inbound{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		Private:   msg.Chat.IsPrivate(),
	}
	if msg.ReplyToMessage != nil {
		in.ReplyTo = forwardedChat(msg.ReplyToMessage)
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		if !addressedToBot(text, botUsername) {
			return Inbound{Kind: KindIgnore}
		}
		name, args, ok := command.Parse(text)
		if !ok {
			return Inbound{Kind: KindIgnore}
		}
		in.Kind, in.Command, in.Args = KindCommand, name, args
		return in
	}

	if forwarded := forwardedChat(msg); forwarded != nil {
		if !in.Private {
			return Inbound{Kind: KindIgnore}
		}
		in.Kind, in.Forwarded = KindForward, forwarded
		return in
	}

	if text == "" {
		return Inbound{Kind: KindIgnore}
	}
	if !in.Private {
		mention := "@" + botUsername
		switch {
		case botUsername != "" && containsFold(text, mention):
			text = strings.TrimSpace(replaceFold(text, mention, ""))
		case repliesToBot(msg, botUsername):
		default:
			return Inbound{Kind: KindIgnore}
		}
		if text == "" {
			return Inbound{Kind: KindIgnore}
		}
	}
	in.Kind, in.Text = KindChat, text
	return in
}

// forwardedChat returns the channel or supergroup a message was forwarded from.
func forwardedChat(msg *tgbotapi.Message) *command.ForwardedChat {
	chat := msg.ForwardFromChat
	if chat == nil || !(chat.IsChannel() || chat.IsSuperGroup()) {
		return nil
	}
	return &command.ForwardedChat{
		ID:       chat.ID,
		Username: chat.UserName,
		Title:    chat.Title,
		Caption:  strings.TrimSpace(msg.Caption),
	}
}

// addressedToBot is false for "/cmd@otherbot".
func addressedToBot(text, botUsername string) bool {
	first := strings.Fields(text)[0]
	at := strings.Index(first, "@")
	if at < 0 || botUsername == "" {
		return true
	}
	return strings.EqualFold(first[at+1:], botUsername)
}

func repliesToBot(msg *tgbotapi.Message, botUsername string) bool {
	reply := msg.ReplyToMessage
	return reply != nil && reply.From != nil && reply.From.IsBot && botUsername != "" &&
		strings.EqualFold(reply.From.UserName, botUsername)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func replaceFold(s, old, repl string) string {
	i := strings.Index(strings.ToLower(s), strings.ToLower(old))
	if i < 0 {
		return s
	}
	return s[:i] + repl + s[i+len(old):]
}
