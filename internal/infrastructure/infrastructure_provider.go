package infrastructure

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/crontab"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
	_ "github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/dbschema"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/transaction"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/llmprovider"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/lock"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/userbot"
	"github.com/facksten/PushRSP-Telegram-bot/internal/worker"
	"github.com/facksten/PushRSP-Telegram-bot/pkg/telemetry"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideLogger builds the process logger from LOG_* and installs it globally.
func ProvideLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.NewWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
}

// ProvideDatabase opens the database and, with AUTO_MIGRATE, brings the schema up to date.
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Connect(database.Config{
		DatabaseURL: cfg.DatabaseURL,
		ReadURL:     cfg.DatabaseReadURL,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnLifetime,
		LogLevel:    database.ParseLogLevel(cfg.DBLogLevel),
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}

	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.Migrate(db, config.Version); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return db, cleanup, nil
}

// ProvideTransactionDatabase provides a transaction database wrapper
func ProvideTransactionDatabase(db *gorm.DB) *transaction.Database {
	return transaction.NewDatabase(db)
}

// ProvideLocker returns a redsync locker when REDIS_URL is set and an in-process one otherwise.
func ProvideLocker(cfg *config.Config, log zerolog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewLocalLocker(), func() {}, nil
	}
	locker, err := lock.NewRedisLocker(context.Background(), cfg.RedisURL, cfg.LockTTL, log)
	if err != nil {
		return nil, nil, err
	}
	return locker, func() {
		if err := locker.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}, nil
}

// ProvideLLMProviders builds one client per provider with credentials.
func ProvideLLMProviders(cfg *config.Config, log zerolog.Logger) ([]llm.Provider, error) {
	return llmprovider.BuildRegistry(context.Background(), cfg.ProviderEntries(), log)
}

func ProvideSanitizer(cfg *config.Config) *telemetry.Sanitizer {
	return telemetry.NewSanitizer(telemetry.ParsePIILevel(cfg.LogPIILevel), cfg.LogPIISalt)
}

// ProvideUserbot returns nil when ENABLE_USERBOT is off.
func ProvideUserbot(cfg *config.Config, log zerolog.Logger) *userbot.Client {
	if !cfg.EnableUserbot {
		return nil
	}
	return userbot.NewClient(userbot.Config{
		APIID:       cfg.TelegramAPIID,
		APIHash:     cfg.TelegramAPIHash,
		Phone:       cfg.TelegramPhone,
		SessionFile: cfg.TelegramSessionFile,
	}, log)
}

// ProvideChannelSource exposes the userbot as the indexer's history source.
func ProvideChannelSource(client *userbot.Client) indexer.Source {
	if client == nil {
		return userbot.Disabled{}
	}
	return client
}

// ProvideWorkerPool bounds one update at a time per worker. A chat update may walk the
// whole fallback chain, so the task timeout covers every provider attempt.
func ProvideWorkerPool(cfg *config.Config, log zerolog.Logger) *worker.Pool {
	return worker.NewPool(worker.Config{
		WorkerCount: cfg.WorkerCount,
		TaskTimeout: cfg.ProviderTimeout * time.Duration(len(llm.FallbackOrder)),
	}, log)
}

func ProvideCrontab(ix *indexer.Indexer, cfg *config.Config) *crontab.Crontab {
	return crontab.NewCrontab(ix, crontab.Config{
		Enabled:       cfg.EnableUserbot && cfg.IndexUpdateEnabled,
		IntervalHours: cfg.IndexUpdateIntervalHours,
		Window:        cfg.IndexUpdateWindow,
		Limit:         cfg.IndexUpdateLimit,
	})
}

var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,
	ProvideLogger,

	// Database
	ProvideDatabase,
	ProvideTransactionDatabase,

	// Repositories
	repository.RepositoryProvider,

	// Locks
	ProvideLocker,

	// LLM clients
	ProvideLLMProviders,

	// Telegram user session
	ProvideUserbot,
	ProvideChannelSource,

	ProvideSanitizer,

	// Workers
	ProvideWorkerPool,
	worker.NewBackground,
	ProvideCrontab,
)
