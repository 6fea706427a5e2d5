package userbot

import (
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
)

// historyMessages extracts the message list from any history response variant.
func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch r := res.(type) {
	case *tg.MessagesChannelMessages:
		return r.Messages
	case *tg.MessagesMessagesSlice:
		return r.Messages
	case *tg.MessagesMessages:
		return r.Messages
	default:
		return nil
	}
}

// toSourceMessages keeps Telegram's newest-first order. Service and empty messages are kept
// without a sender so the indexer counts and skips them.
func toSourceMessages(messages []tg.MessageClass) []indexer.SourceMessage {
	out := make([]indexer.SourceMessage, 0, len(messages))
	for _, raw := range messages {
		switch m := raw.(type) {
		case *tg.Message:
			sm := indexer.SourceMessage{
				ID:        int64(m.ID),
				Date:      time.Unix(int64(m.Date), 0).UTC(),
				HasSender: m.Post || m.FromID != nil,
				Text:      m.Message,
				Views:     int64(m.Views),
				Forwards:  int64(m.Forwards),
			}
			if m.Media != nil {
				sm.HasMedia = true
				sm.MediaType = mediaType(m.Media)
			}
			out = append(out, sm)
		case *tg.MessageService:
			out = append(out, indexer.SourceMessage{ID: int64(m.ID), Date: time.Unix(int64(m.Date), 0).UTC()})
		case *tg.MessageEmpty:
			out = append(out, indexer.SourceMessage{ID: int64(m.ID)})
		}
	}
	return out
}

func mediaType(media tg.MessageMediaClass) string {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		return "photo"
	case *tg.MessageMediaDocument:
		if doc, ok := m.Document.(*tg.Document); ok {
			switch {
			case strings.HasPrefix(doc.MimeType, "video/"):
				return "video"
			case strings.HasPrefix(doc.MimeType, "audio/"):
				return "audio"
			}
		}
		return "document"
	case *tg.MessageMediaWebPage:
		return "webpage"
	case *tg.MessageMediaPoll:
		return "poll"
	default:
		return "other"
	}
}

// findChannel returns the broadcast or supergroup channel with id among chats, or any
// channel when id is zero.
func findChannel(chats []tg.ChatClass, id int64) (*tg.Channel, bool) {
	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		if id == 0 || ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}

// bareChannelID strips the -100 prefix Bot API style ids carry.
func bareChannelID(id int64) int64 {
	const botAPIOffset = 1_000_000_000_000
	if id < 0 {
		id = -id
		if id > botAPIOffset {
			id -= botAPIOffset
		}
	}
	return id
}
