// Package indexer copies channel history into the message store.
package indexer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/retry"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/lock"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/metrics"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/observability"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const (
	DefaultPageSize    = 100
	DefaultConcurrency = 2
)

// Report summarizes one indexing run.
type Report struct {
	RunID        string
	ChannelID    uint
	ChannelRef   string
	ChannelTitle string
	Fetched      int
	Skipped      int
	Inserted     int
	Updated      int
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunResult is the outcome for one channel of a multi-channel run.
type RunResult struct {
	Channel *channel.Channel
	Report  *Report
	Err     error
}

// Channels is the part of the channel service the indexer needs.
type Channels interface {
	Resolve(ctx context.Context, ref string) (*channel.Channel, error)
	ResolveApproved(ctx context.Context, ref string) (*channel.Channel, error)
	ListApproved(ctx context.Context) ([]*channel.Channel, error)
	MarkIndexed(ctx context.Context, id uint, at time.Time) error
}

type Options struct {
	PageSize       int
	PagesPerSecond float64
	Concurrency    int
	Retry          retry.Policy
}

// Indexer walks channel history newest first and upserts every message with a sender and
// non-empty text. One run per channel holds the channel lock; distinct channels index in
// parallel and share the page rate limit.
type Indexer struct {
	source   Source
	store    message.Store
	channels Channels
	locker   lock.Locker
	opts     Options
	limiter  *rate.Limiter
	log      zerolog.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	running map[uint]map[string]context.CancelFunc
}

func New(source Source, store message.Store, channels Channels, locker lock.Locker, opts Options, log zerolog.Logger) *Indexer {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	limit := rate.Inf
	if opts.PagesPerSecond > 0 {
		limit = rate.Limit(opts.PagesPerSecond)
	}
	return &Indexer{
		source:   source,
		store:    store,
		channels: channels,
		locker:   locker,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.With().Str("component", "indexer").Logger(),
		tracer:   otel.Tracer("pushtutor/indexer"),
		running:  make(map[uint]map[string]context.CancelFunc),
	}
}

// Index fetches up to limit messages (limit <= 0 means the whole backlog) of an approved
// channel. Unknown or non-approved channels yield NOT_FOUND. Any later failure is an
// *IndexFailedError carrying the partial report.
func (ix *Indexer) Index(ctx context.Context, ref string, limit int) (*Report, error) {
	ch, err := ix.channels.ResolveApproved(ctx, ref)
	if err != nil {
		return nil, err
	}
	return ix.indexChannel(ctx, ch, limit, time.Time{})
}

// Cancel stops every running or waiting run of the channel. It reports whether any run was
// signalled.
func (ix *Indexer) Cancel(ctx context.Context, ref string) (bool, error) {
	ch, err := ix.channels.Resolve(ctx, ref)
	if err != nil {
		return false, err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	runs := ix.running[ch.ID]
	for _, cancel := range runs {
		cancel()
	}
	return len(runs) > 0, nil
}

// Running lists the ids of channels with an active run.
func (ix *Indexer) Running() []uint {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ids := make([]uint, 0, len(ix.running))
	for id := range ix.running {
		ids = append(ids, id)
	}
	return ids
}

// IndexAll indexes every approved channel with bounded concurrency. Per-channel failures are
// returned in the results, not as the error.
func (ix *Indexer) IndexAll(ctx context.Context, limit int) ([]RunResult, error) {
	return ix.forEachApproved(ctx, limit, time.Time{})
}

// UpdateRecent refreshes every approved channel, stopping at the first message older than
// window or after limit messages.
func (ix *Indexer) UpdateRecent(ctx context.Context, window time.Duration, limit int) ([]RunResult, error) {
	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}
	return ix.forEachApproved(ctx, limit, cutoff)
}

func (ix *Indexer) forEachApproved(ctx context.Context, limit int, cutoff time.Time) ([]RunResult, error) {
	channels, err := ix.channels.ListApproved(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)
	for i, ch := range channels {
		g.Go(func() error {
			report, err := ix.indexChannel(gctx, ch, limit, cutoff)
			results[i] = RunResult{Channel: ch, Report: report, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (ix *Indexer) indexChannel(ctx context.Context, ch *channel.Channel, limit int, cutoff time.Time) (*Report, error) {
	report := &Report{
		RunID:        uuid.NewString(),
		ChannelID:    ch.ID,
		ChannelRef:   ch.Ref,
		ChannelTitle: ch.DisplayName(),
		StartedAt:    time.Now().UTC(),
	}
	log := ix.log.With().Str("run_id", report.RunID).Str("channel", ch.Ref).Logger()

	ctx, span := ix.tracer.Start(ctx, "indexer.Index", trace.WithAttributes(
		attribute.String("channel.ref", ch.Ref),
		attribute.Int("limit", limit),
	))
	defer span.End()

	runCtx, cancel := context.WithCancel(ctx)
	ix.register(ch.ID, report.RunID, cancel)
	defer func() {
		ix.unregister(ch.ID, report.RunID)
		cancel()
	}()

	log.Info().Int("limit", limit).Msg("indexing started")
	err := ix.locker.WithLock(runCtx, "index:"+strconv.FormatUint(uint64(ch.ID), 10), func() error {
		return ix.run(runCtx, ch, limit, cutoff, report)
	})
	report.FinishedAt = time.Now().UTC()

	span.SetAttributes(
		attribute.Int("fetched", report.Fetched),
		attribute.Int("inserted", report.Inserted),
		attribute.Int("updated", report.Updated),
	)

	if err != nil {
		failed := &IndexFailedError{Reason: failureReason(err), Report: report, Err: err}
		status := "failed"
		if failed.Cancelled() {
			status = ReasonCancelled
		}
		metrics.RecordIndexRun(status, report.Duration())
		observability.RecordError(ctx, err, failed.Reason)
		log.Warn().Err(err).
			Str("reason", failed.Reason).
			Int("fetched", report.Fetched).
			Int("inserted", report.Inserted).
			Int("updated", report.Updated).
			Msg("indexing aborted")
		return report, failed
	}

	if err := ix.channels.MarkIndexed(context.WithoutCancel(ctx), ch.ID, report.FinishedAt); err != nil {
		log.Warn().Err(err).Msg("failed to stamp last indexed time")
	}
	metrics.RecordIndexRun("success", report.Duration())
	log.Info().
		Int("fetched", report.Fetched).
		Int("skipped", report.Skipped).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Dur("duration", report.Duration()).
		Msg("indexing finished")
	return report, nil
}

func (ix *Indexer) run(ctx context.Context, ch *channel.Channel, limit int, cutoff time.Time, report *Report) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(ctx, err)
		}
		pageSize := ix.opts.PageSize
		if limit > 0 {
			if remaining := limit - report.Fetched; remaining < pageSize {
				pageSize = remaining
			}
		}
		if pageSize <= 0 {
			return nil
		}

		page, err := ix.fetch(ctx, ch.Ref, offset, pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		progressed := false
		for _, sm := range page {
			if err := ctx.Err(); err != nil {
				return cancelled(ctx, err)
			}
			if !cutoff.IsZero() && sm.Date.Before(cutoff) {
				return nil
			}
			if offset == 0 || sm.ID < offset {
				offset = sm.ID
				progressed = true
			}

			report.Fetched++
			if err := ix.unit(ctx, ch.ID, sm, report); err != nil {
				return err
			}
			if limit > 0 && report.Fetched >= limit {
				return nil
			}
		}
		if !progressed {
			ix.log.Warn().Str("channel", ch.Ref).Int64("offset", offset).Msg("source returned no older messages, stopping")
			return nil
		}
	}
}

// unit stores one message. It runs detached from cancellation so a started write always
// completes; cancellation is observed between units.
func (ix *Indexer) unit(ctx context.Context, channelID uint, sm SourceMessage, report *Report) error {
	msg := &message.Message{
		ChannelID: channelID,
		SourceID:  sm.ID,
		Date:      sm.Date.UTC(),
		HasSender: sm.HasSender,
		Text:      sm.Text,
		Views:     sm.Views,
		Forwards:  sm.Forwards,
		HasMedia:  sm.HasMedia,
		MediaType: sm.MediaType,
	}
	if !msg.Indexable() {
		report.Skipped++
		metrics.RecordIndexedMessage("skipped")
		return nil
	}

	outcome, err := ix.store.Upsert(context.WithoutCancel(ctx), msg)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to store message")
	}
	switch outcome {
	case message.OutcomeInserted:
		report.Inserted++
	case message.OutcomeUpdated:
		report.Updated++
	}
	metrics.RecordIndexedMessage(outcome.String())
	return nil
}

func (ix *Indexer) fetch(ctx context.Context, ref string, offset int64, limit int) ([]SourceMessage, error) {
	if err := ix.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, ctx.Err())
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTransient, "rate limiter wait failed", err, "")
	}

	onRetry := func(attempt int, delay time.Duration, err error) {
		ix.log.Warn().Err(err).
			Str("channel", ref).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("history fetch failed, retrying")
	}
	page, err := retry.ExecuteWithResult(ctx, ix.opts.Retry, onRetry, func(ctx context.Context, _ int) ([]SourceMessage, error) {
		return ix.source.Fetch(ctx, ref, offset, limit)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, ctx.Err())
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to fetch channel history")
	}
	return page, nil
}

func (ix *Indexer) register(channelID uint, runID string, cancel context.CancelFunc) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	runs, ok := ix.running[channelID]
	if !ok {
		runs = make(map[string]context.CancelFunc)
		ix.running[channelID] = runs
	}
	runs[runID] = cancel
}

func (ix *Indexer) unregister(channelID uint, runID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.running[channelID], runID)
	if len(ix.running[channelID]) == 0 {
		delete(ix.running, channelID)
	}
}

func cancelled(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeCancelled, "indexing cancelled", err, "")
}
