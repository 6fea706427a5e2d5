package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
)

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// Config holds database configuration
type Config struct {
	DatabaseURL string
	// ReadURL, when set, routes reads (search, listings) to a replica.
	ReadURL     string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogLevel    gormlogger.LogLevel
}

// Connect opens postgres:// or sqlite:// URLs and configures the pool.
func Connect(cfg Config) (*gorm.DB, error) {
	log := logger.GetLogger()

	primary, err := Dialector(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(primary, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(cfg.LogLevel),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		log.Error().
			Str("error_code", "5c16fb53-d98c-4fc6-8bb4-9abd3c0b9e88").
			Err(err).
			Msg("unable to connect to database")
		return nil, err
	}

	if cfg.ReadURL != "" {
		replica, err := Dialector(cfg.ReadURL)
		if err != nil {
			return nil, err
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{replica},
			Policy:   dbresolver.RandomPolicy{},
		})
		if cfg.MaxOpen > 0 {
			resolver = resolver.SetMaxOpenConns(cfg.MaxOpen).SetMaxIdleConns(cfg.MaxIdle)
		}
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("register read replica: %w", err)
		}
		log.Info().Msg("read replica registered")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite(cfg.DatabaseURL) {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY between pool members.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info().Str("driver", primary.Name()).Msg("Successfully connected to database")
	return db, nil
}

// Dialector picks the gorm driver from the URL scheme.
func Dialector(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case isSQLite(url):
		return sqlite.Open(sqlitePath(url)), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q: expected postgres:// or sqlite://", redact(url))
	}
}

// Ping checks that the primary answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ParseLogLevel maps DB_LOG_LEVEL to gorm's logger levels.
func ParseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

func isSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}

func sqlitePath(url string) string {
	path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite:"), "//")
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		return path
	}
	if !strings.Contains(path, "?") {
		path += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	return path
}

func redact(url string) string {
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if scheme := strings.Index(url, "://"); scheme >= 0 && scheme < at {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
