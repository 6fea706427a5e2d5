package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/userbot"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

// Toolkit backs the one-shot CLI commands. It shares the database and domain services
// with the server but starts no pollers.
type Toolkit struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *gorm.DB
	channels *channel.Service
	indexer  *indexer.Indexer
	search   *search.Engine
	router   *llm.Router
	userbot  *userbot.Client
}

// withUserbot connects the user session for the duration of fn.
func (tk *Toolkit) withUserbot(ctx context.Context, fn func(ctx context.Context) error) error {
	if tk.userbot == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"indexing needs ENABLE_USERBOT=true and an authorized session", nil, "")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- tk.userbot.Run(ctx) }()

	err := fn(ctx)
	cancel()
	if runErr := <-done; err == nil && runErr != nil {
		err = runErr
	}
	return err
}

func (tk *Toolkit) Index(ctx context.Context, out io.Writer, ref string, limit int) error {
	return tk.withUserbot(ctx, func(ctx context.Context) error {
		report, err := tk.indexer.Index(ctx, ref, limit)
		if err != nil {
			return err
		}
		printReport(out, report)
		return nil
	})
}

func (tk *Toolkit) IndexAll(ctx context.Context, out io.Writer, limit int) error {
	return tk.withUserbot(ctx, func(ctx context.Context) error {
		results, err := tk.indexer.IndexAll(ctx, limit)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(out, "%s: failed: %v\n", r.Channel.Ref, r.Err)
				continue
			}
			printReport(out, r.Report)
		}
		return nil
	})
}

func printReport(out io.Writer, r *indexer.Report) {
	fmt.Fprintf(out, "%s: fetched=%d inserted=%d updated=%d skipped=%d in %s\n",
		r.ChannelRef, r.Fetched, r.Inserted, r.Updated, r.Skipped, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

// Search prints ranked hits. channelRef, when set, restricts results to one channel.
func (tk *Toolkit) Search(ctx context.Context, out io.Writer, query, channelRef, topic string, limit int) error {
	filter := search.Filter{Topic: topic, Limit: limit}
	if channelRef != "" {
		ch, err := tk.channels.Resolve(ctx, channelRef)
		if err != nil {
			return err
		}
		filter.ChannelIDs = []uint{ch.ID}
	}
	results, err := tk.search.Search(ctx, query, filter)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tCHANNEL\tDATE\tTEXT")
	for _, r := range results {
		text := strings.Join(strings.Fields(r.Message.Text), " ")
		if runes := []rune(text); len(runes) > 80 {
			text = string(runes[:80]) + "…"
		}
		fmt.Fprintf(w, "%.3f\t@%s/%d\t%s\t%s\n", r.Score, r.Channel.Ref, r.Message.SourceID, r.Message.Date.Format("2006-01-02"), text)
	}
	return w.Flush()
}

func (tk *Toolkit) Providers(ctx context.Context, out io.Writer) error {
	if err := tk.router.Init(ctx); err != nil {
		return err
	}
	active := tk.router.Active()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tACTIVE")
	for _, kind := range tk.router.Available() {
		mark := ""
		if kind == active {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", kind, tk.router.Model(kind), mark)
	}
	return w.Flush()
}

func (tk *Toolkit) SetProvider(ctx context.Context, out io.Writer, name string) error {
	if err := tk.router.Init(ctx); err != nil {
		return err
	}
	if err := tk.router.SetActive(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(out, "active provider: %s\n", tk.router.Active())
	return nil
}
