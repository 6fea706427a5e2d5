package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/crontab"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/userbot"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/httpserver"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/telegram"
	"github.com/facksten/PushRSP-Telegram-bot/internal/worker"
)

// Application is the long-running bot process. bot, httpServer and userbot are nil when
// their ENABLE_* switch is off.
type Application struct {
	cfg        *config.Config
	log        zerolog.Logger
	router     *llm.Router
	bot        *telegram.Bot
	httpServer *httpserver.HTTPServer
	userbot    *userbot.Client
	crontab    *crontab.Crontab
	pool       *worker.Pool
	background *worker.Background
}

// Start runs every enabled component until ctx is cancelled or one of them fails, then
// drains queued updates and background index runs.
func (application *Application) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := application.router.Init(ctx); err != nil {
		application.log.Warn().Err(err).Msg("provider settings not restored")
	}
	application.log.Info().
		Str("active_provider", string(application.router.Active())).
		Int("providers", len(application.router.Available())).
		Msg("llm router ready")

	// Queued updates keep running after ctx ends so users still get their replies.
	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()
	application.pool.Start(poolCtx)

	var eg errgroup.Group
	run := func(name string, fn func(context.Context) error) {
		eg.Go(func() error {
			if err := fn(ctx); err != nil {
				cancel()
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	if application.bot != nil {
		run("telegram bot", application.bot.Run)
	}
	if application.userbot != nil {
		eg.Go(func() error {
			if err := application.userbot.Run(ctx); err != nil {
				application.log.Error().Err(err).Msg("userbot stopped; indexing is unavailable")
			}
			return nil
		})
	}
	if application.httpServer != nil {
		run("http server", application.httpServer.Run)
	}
	run("crontab", application.crontab.Run)

	application.log.Info().
		Bool("bot", application.bot != nil).
		Bool("userbot", application.userbot != nil).
		Bool("http", application.httpServer != nil).
		Str("version", config.Version).
		Msg("pushtutor started")

	err := eg.Wait()

	application.log.Info().Msg("shutting down")
	if !application.pool.Stop(application.cfg.ShutdownTimeout) {
		cancelPool()
	}
	application.background.Stop(application.cfg.ShutdownTimeout)
	return err
}
