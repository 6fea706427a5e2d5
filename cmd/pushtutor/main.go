package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/observability"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/userbot"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pushtutor",
	Short: "PushTutor - Telegram tutor bot with curated channel search",
	Long: `pushtutor runs a Telegram bot that answers learners through a chain of LLM
providers and searches posts from admin-curated educational channels.

Configuration is read from the environment and an optional .env file.

Examples:
  pushtutor serve
  pushtutor userbot-login
  pushtutor index @golang_fa --limit 500
  pushtutor search "goroutine leak" --topic go`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the userbot session, the scheduler and the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var indexCmd = &cobra.Command{
	Use:   "index <channel>",
	Short: "Index the history of one approved channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var indexAllCmd = &cobra.Command{
	Use:   "index-all",
	Short: "Index every approved channel",
	Args:  cobra.NoArgs,
	RunE:  runIndexAll,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed posts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured LLM providers",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

var setProviderCmd = &cobra.Command{
	Use:   "set-provider <name>",
	Short: "Switch the active LLM provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetProvider,
}

var loginCmd = &cobra.Command{
	Use:   "userbot-login",
	Short: "Authorize the Telegram user session used for indexing",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(indexAllCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(setProviderCmd)
	rootCmd.AddCommand(loginCmd)

	indexCmd.Flags().Int("limit", 1000, "Maximum messages to fetch (0 for the whole history)")
	indexAllCmd.Flags().Int("limit", 500, "Maximum messages to fetch per channel")

	searchCmd.Flags().String("channel", "", "Restrict results to one channel")
	searchCmd.Flags().String("topic", "", "Restrict results to channels tagged with a topic")
	searchCmd.Flags().Int("limit", 10, "Number of results")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	application, cleanup, err := CreateApplication()
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer cleanup()

	cfg := application.cfg
	log := application.log
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		ServiceName:      cfg.ServiceName,
		ServiceNamespace: cfg.ServiceNamespace,
		Environment:      cfg.Environment,
		OTLPEndpoint:     cfg.OTLPEndpoint,
		OTLPHeaders:      cfg.OTLPHeaders,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	return application.Start(ctx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	tk, cleanup, err := CreateToolkit()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := database.Migrate(tk.db, config.Version); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	ctx, stop := signalContext()
	defer stop()

	tk, cleanup, err := CreateToolkit()
	if err != nil {
		return err
	}
	defer cleanup()
	return tk.Index(ctx, cmd.OutOrStdout(), args[0], limit)
}

func runIndexAll(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	ctx, stop := signalContext()
	defer stop()

	tk, cleanup, err := CreateToolkit()
	if err != nil {
		return err
	}
	defer cleanup()
	return tk.IndexAll(ctx, cmd.OutOrStdout(), limit)
}

func runSearch(cmd *cobra.Command, args []string) error {
	channelRef, _ := cmd.Flags().GetString("channel")
	topic, _ := cmd.Flags().GetString("topic")
	limit, _ := cmd.Flags().GetInt("limit")

	tk, cleanup, err := CreateToolkit()
	if err != nil {
		return err
	}
	defer cleanup()
	return tk.Search(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), channelRef, topic, limit)
}

func runProviders(cmd *cobra.Command, args []string) error {
	tk, cleanup, err := CreateToolkit()
	if err != nil {
		return err
	}
	defer cleanup()
	return tk.Providers(cmd.Context(), cmd.OutOrStdout())
}

func runSetProvider(cmd *cobra.Command, args []string) error {
	tk, cleanup, err := CreateToolkit()
	if err != nil {
		return err
	}
	defer cleanup()
	return tk.SetProvider(cmd.Context(), cmd.OutOrStdout(), args[0])
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.TelegramAPIID == 0 || cfg.TelegramAPIHash == "" {
		return fmt.Errorf("TELEGRAM_API_ID and TELEGRAM_API_HASH are required")
	}
	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	client := userbot.NewClient(userbot.Config{
		APIID:       cfg.TelegramAPIID,
		APIHash:     cfg.TelegramAPIHash,
		Phone:       cfg.TelegramPhone,
		SessionFile: cfg.TelegramSessionFile,
	}, log)
	if err := client.Login(ctx, cfg.TelegramPhone, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s\n", cfg.TelegramSessionFile)
	return nil
}
