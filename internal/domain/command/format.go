package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
)

const snippetRunes = 280

func helpText(commands []*Command, admin bool) string {
	var b strings.Builder
	b.WriteString("Commands\n")
	adminHeader := false
	for _, c := range commands {
		if c.AdminOnly && !admin {
			continue
		}
		if c.AdminOnly && !adminHeader {
			b.WriteString("\nAdmin commands\n")
			adminHeader = true
		}
		line := "/" + c.Name
		if c.Usage != "" {
			line = c.Usage
		}
		fmt.Fprintf(&b, "%s - %s", line, c.Description)
		if len(c.Aliases) > 0 {
			fmt.Fprintf(&b, " (also /%s)", strings.Join(c.Aliases, ", /"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nAny other message is answered by the tutor.")
	return b.String()
}

func formatResults(query string, results []search.RankedMessage) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q. Try different keywords.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results for %q\n", len(results), query)
	for i, r := range results {
		name := "unknown channel"
		if r.Channel != nil {
			name = r.Channel.DisplayName()
		}
		fmt.Fprintf(&b, "\n%d. %s · %s\n", i+1, name, r.Message.Date.Format("2006-01-02"))
		b.WriteString(snippet(r.Message.Text, snippetRunes))
		b.WriteString("\n")
		if link := postLink(r.Channel, r.Message.SourceID); link != "" {
			b.WriteString(link)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}

// postLink builds a t.me link to the post, using the private-channel form for numeric refs.
func postLink(ch *channel.Channel, sourceID int64) string {
	if ch == nil {
		return ""
	}
	if ch.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", ch.Username, sourceID)
	}
	if id, err := strconv.ParseInt(ch.Ref, 10, 64); err == nil {
		if id < 0 {
			id = -id - 1_000_000_000_000
		}
		if id > 0 {
			return fmt.Sprintf("https://t.me/c/%d/%d", id, sourceID)
		}
		return ""
	}
	return fmt.Sprintf("https://t.me/%s/%d", ch.Ref, sourceID)
}

func formatPublicChannels(channels []*channel.Channel, limit int) string {
	if len(channels) == 0 {
		return "No channels have been added yet."
	}
	var b strings.Builder
	b.WriteString("Curated learning channels\n")
	for i, ch := range channels {
		if i == limit {
			fmt.Fprintf(&b, "\n... and %d more", len(channels)-limit)
			break
		}
		fmt.Fprintf(&b, "\n• %s\n", ch.DisplayName())
		if ch.Username != "" && ch.Title != "" {
			fmt.Fprintf(&b, "  @%s\n", ch.Username)
		}
		if ch.Description != "" {
			fmt.Fprintf(&b, "  %s\n", snippet(ch.Description, 100))
		}
		if len(ch.Topics) > 0 {
			topics := ch.Topics
			if len(topics) > 3 {
				topics = topics[:3]
			}
			fmt.Fprintf(&b, "  topics: %s\n", strings.Join(topics, ", "))
		}
		if ch.Level != "" {
			fmt.Fprintf(&b, "  level: %s\n", ch.Level)
		}
	}
	return b.String()
}

func formatAdminChannels(channels []*channel.Channel) string {
	if len(channels) == 0 {
		return "No channels are known."
	}
	var b strings.Builder
	b.WriteString("All channels\n")
	for _, ch := range channels {
		fmt.Fprintf(&b, "\n#%d %s [%s]\n  ref: %s\n", ch.ID, ch.DisplayName(), ch.Status, ch.Ref)
		if len(ch.Topics) > 0 {
			fmt.Fprintf(&b, "  topics: %s\n", strings.Join(ch.Topics, ", "))
		}
		if ch.LastIndexedAt != nil {
			fmt.Fprintf(&b, "  indexed: %s\n", ch.LastIndexedAt.Format("2006-01-02 15:04"))
		}
	}
	return b.String()
}

func formatSuggestions(pending []*channel.Channel) string {
	if len(pending) == 0 {
		return "No suggestions are waiting."
	}
	var b strings.Builder
	b.WriteString("Pending suggestions\n")
	for _, ch := range pending {
		fmt.Fprintf(&b, "\nID %d: %s\n  by user %d\n", ch.ID, ch.DisplayName(), ch.SuggestedBy)
		if ch.SuggestReason != "" {
			fmt.Fprintf(&b, "  %s\n", ch.SuggestReason)
		}
	}
	b.WriteString("\n/approve <id> to accept, /reject <id> [note] to decline")
	return b.String()
}

func formatKeyValues(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if n := len([]rune(r[0])); n > width {
			width = n
		}
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%-*s  %s\n", width+1, r[0]+":", r[1])
	}
	return b.String()
}

func formatIndexOutcome(ch *channel.Channel, report *indexer.Report, err error) string {
	if err != nil {
		var failed *indexer.IndexFailedError
		if errors.As(err, &failed) {
			text := fmt.Sprintf("Indexing %s stopped: %s.", ch.DisplayName(), failed.Reason)
			if failed.Report != nil {
				text += fmt.Sprintf(" Kept %d new and %d updated messages.", failed.Report.Inserted, failed.Report.Updated)
			}
			return text
		}
		return fmt.Sprintf("Indexing %s failed: %v", ch.DisplayName(), err)
	}
	title := report.ChannelTitle
	if title == "" {
		title = ch.DisplayName()
	}
	return "Indexing finished\n" + formatKeyValues([][2]string{
		{"Channel", title},
		{"Fetched", strconv.Itoa(report.Fetched)},
		{"Indexed", strconv.Itoa(report.Inserted)},
		{"Updated", strconv.Itoa(report.Updated)},
		{"Skipped", strconv.Itoa(report.Skipped)},
		{"Took", durationText(report.Duration())},
	})
}

func formatIndexAll(results []indexer.RunResult) string {
	var ok, failed, inserted, updated int
	var failures []string
	for _, r := range results {
		if r.Err != nil {
			failed++
			name := "?"
			if r.Channel != nil {
				name = r.Channel.DisplayName()
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, failureText(r.Err)))
			continue
		}
		ok++
		if r.Report != nil {
			inserted += r.Report.Inserted
			updated += r.Report.Updated
		}
	}
	text := "Indexing finished\n" + formatKeyValues([][2]string{
		{"Channels processed", strconv.Itoa(ok)},
		{"Channels failed", strconv.Itoa(failed)},
		{"Messages indexed", strconv.Itoa(inserted)},
		{"Messages updated", strconv.Itoa(updated)},
	})
	if len(failures) > 0 {
		text += "\n" + strings.Join(failures, "\n")
	}
	return text
}

func failureText(err error) string {
	var failed *indexer.IndexFailedError
	if errors.As(err, &failed) {
		return failed.Reason
	}
	return err.Error()
}
