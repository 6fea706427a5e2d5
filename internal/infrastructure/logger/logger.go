package logger

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger zerolog.Logger
	once         sync.Once
	mu           sync.RWMutex
)

// GetLogger returns the global logger instance
func GetLogger() zerolog.Logger {
	once.Do(func() {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		mu.Lock()
		globalLogger = zerolog.New(consoleWriter).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		mu.Unlock()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Options configures the process logger.
type Options struct {
	Level  string
	Format string
	// File, when set, receives a JSON copy of every event in addition to stdout.
	File string
}

// New constructs a zerolog logger based on level and format configuration.
func New(level, format string) (zerolog.Logger, error) {
	return NewWithOptions(Options{Level: level, Format: format})
}

// NewWithOptions builds the logger and installs it as the global instance.
func NewWithOptions(opts Options) (zerolog.Logger, error) {
	GetLogger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var out io.Writer
	switch strings.ToLower(opts.Format) {
	case "json":
		out = os.Stdout
	case "console", "":
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	default:
		return zerolog.Logger{}, errors.New("unsupported log format")
	}

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Logger{}, err
			}
		}
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		out = zerolog.MultiLevelWriter(out, file)
	}

	zerolog.SetGlobalLevel(lvl)

	mu.Lock()
	globalLogger = zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	logger := globalLogger
	mu.Unlock()

	return logger, nil
}
