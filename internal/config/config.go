package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Global singleton for packages that are not wired through the injector.
var globalConfig *Config

// DefaultSystemPrompt is used when SYSTEM_PROMPT_FILE is missing or empty.
const DefaultSystemPrompt = "You are PushTutor, an advanced Telegram learning assistant bot developed by facksten for the PushRSP team."

// Config holds all environment backed configuration for pushtutor.
type Config struct {
	// Telegram
	BotToken            string  `env:"BOT_TOKEN"`
	EnableBot           bool    `env:"ENABLE_BOT" envDefault:"true"`
	EnableUserbot       bool    `env:"ENABLE_USERBOT" envDefault:"false"`
	TelegramAPIID       int     `env:"TELEGRAM_API_ID"`
	TelegramAPIHash     string  `env:"TELEGRAM_API_HASH"`
	TelegramPhone       string  `env:"TELEGRAM_PHONE"`
	TelegramSessionFile string  `env:"TELEGRAM_SESSION_FILE" envDefault:"userbot.session"`
	AdminIDs            []int64 `env:"ADMIN_IDS" envSeparator:","`

	// LLM providers
	GeminiAPIKey       string          `env:"GEMINI_API_KEY"`
	GeminiModel        string          `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash-exp"`
	OpenAIAPIKey       string          `env:"OPENAI_API_KEY"`
	OpenAIModel        string          `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIBaseURL      string          `env:"OPENAI_BASE_URL"`
	OpenRouterAPIKey   string          `env:"OPENROUTER_API_KEY"`
	OpenRouterModel    string          `env:"OPENROUTER_MODEL" envDefault:"anthropic/claude-3.5-sonnet"`
	OpenRouterBaseURL  string          `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	AnthropicAPIKey    string          `env:"ANTHROPIC_API_KEY"`
	AnthropicModel     string          `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-latest"`
	DefaultLLMProvider string          `env:"DEFAULT_LLM_PROVIDER" envDefault:"gemini"`
	DefaultModel       string          `env:"DEFAULT_MODEL"`
	LLMTemperature     float64         `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens       int             `env:"LLM_MAX_TOKENS" envDefault:"2000"`
	ProviderTimeout    time.Duration   `env:"PROVIDER_TIMEOUT" envDefault:"60s"`
	SystemPromptFile   string          `env:"SYSTEM_PROMPT_FILE" envDefault:"system_prompt.txt"`
	ProvidersFile      string          `env:"PROVIDERS_FILE"`
	ProviderBootstrap  []ProviderEntry `env:"-"`

	// Database
	DatabaseURL     string        `env:"DATABASE_URL" envDefault:"sqlite://pushtutor.db"`
	DatabaseReadURL string        `env:"DATABASE_READ_URL"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBConnLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	DBLogLevel      string        `env:"DB_LOG_LEVEL" envDefault:"silent"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Conversation context
	HistoryLimit        int  `env:"HISTORY_LIMIT" envDefault:"20"`
	ConversationPersist bool `env:"CONVERSATION_PERSIST" envDefault:"false"`

	// Indexing
	IndexPageSize            int           `env:"INDEX_PAGE_SIZE" envDefault:"100"`
	IndexMaxRetries          int           `env:"INDEX_MAX_RETRIES" envDefault:"4"`
	IndexRetryInitialDelay   time.Duration `env:"INDEX_RETRY_INITIAL_DELAY" envDefault:"1s"`
	IndexRetryMaxDelay       time.Duration `env:"INDEX_RETRY_MAX_DELAY" envDefault:"30s"`
	IndexPagesPerSecond      float64       `env:"INDEX_PAGES_PER_SECOND" envDefault:"1"`
	IndexConcurrency         int           `env:"INDEX_CONCURRENCY" envDefault:"2"`
	IndexUpdateEnabled       bool          `env:"INDEX_UPDATE_ENABLED" envDefault:"true"`
	IndexUpdateIntervalHours int           `env:"INDEX_UPDATE_INTERVAL_HOURS" envDefault:"6"`
	IndexUpdateWindow        time.Duration `env:"INDEX_UPDATE_WINDOW" envDefault:"168h"`
	IndexUpdateLimit         int           `env:"INDEX_UPDATE_LIMIT" envDefault:"500"`

	// Search
	SearchWeightTF         float64       `env:"SEARCH_WEIGHT_TF" envDefault:"1.0"`
	SearchWeightRecency    float64       `env:"SEARCH_WEIGHT_RECENCY" envDefault:"0.5"`
	SearchWeightEngagement float64       `env:"SEARCH_WEIGHT_ENGAGEMENT" envDefault:"0.2"`
	SearchRecencyHalfLife  time.Duration `env:"SEARCH_RECENCY_HALF_LIFE" envDefault:"720h"`
	SearchResultLimit      int           `env:"SEARCH_RESULT_LIMIT" envDefault:"10"`

	// Locks
	RedisURL string        `env:"REDIS_URL"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"10m"`

	// HTTP
	EnableHTTP bool   `env:"ENABLE_HTTP" envDefault:"true"`
	HTTPPort   int    `env:"HTTP_PORT" envDefault:"8080"`
	HTTPAPIKey string `env:"HTTP_API_KEY"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"pushtutor"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"pushrsp"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile          string `env:"LOG_FILE"`
	LogPIILevel      string `env:"LOG_PII_LEVEL" envDefault:"hashed"`
	LogPIISalt       string `env:"LOG_PII_SALT"`

	// Runtime
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	WorkerCount      int           `env:"WORKER_COUNT" envDefault:"8"`
	ChannelCacheSize int           `env:"CHANNEL_CACHE_SIZE" envDefault:"256"`
}

// Load reads .env (if present) and the environment into Config and performs validation.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.DefaultLLMProvider = strings.ToLower(strings.TrimSpace(cfg.DefaultLLMProvider))
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogPIILevel = strings.ToLower(cfg.LogPIILevel)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	entries := cfg.envProviderEntries()
	if file := strings.TrimSpace(cfg.ProvidersFile); file != "" {
		overlay, err := LoadProviderFile(file)
		if err != nil {
			return nil, fmt.Errorf("load providers file: %w", err)
		}
		entries = MergeProviderEntries(entries, overlay)
	}
	cfg.ProviderBootstrap = entries

	globalConfig = cfg
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HistoryLimit <= 0 {
		return errors.New("HISTORY_LIMIT must be positive")
	}
	if c.IndexPageSize <= 0 || c.IndexPageSize > 100 {
		return errors.New("INDEX_PAGE_SIZE must be between 1 and 100")
	}
	if c.IndexMaxRetries < 0 {
		return errors.New("INDEX_MAX_RETRIES must not be negative")
	}
	if c.IndexConcurrency <= 0 {
		return errors.New("INDEX_CONCURRENCY must be positive")
	}
	if c.WorkerCount <= 0 {
		return errors.New("WORKER_COUNT must be positive")
	}
	if c.SearchRecencyHalfLife <= 0 {
		return errors.New("SEARCH_RECENCY_HALF_LIFE must be positive")
	}
	if c.EnableBot && c.BotToken == "" {
		return errors.New("BOT_TOKEN is required when ENABLE_BOT=true")
	}
	if c.EnableUserbot && (c.TelegramAPIID == 0 || c.TelegramAPIHash == "") {
		return errors.New("TELEGRAM_API_ID and TELEGRAM_API_HASH are required when ENABLE_USERBOT=true")
	}
	if _, err := url.Parse(c.DatabaseURL); err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	switch c.LogPIILevel {
	case "none", "hashed", "full":
	default:
		return fmt.Errorf("invalid LOG_PII_LEVEL %q", c.LogPIILevel)
	}
	return nil
}

// IsAdmin reports whether the telegram user id is on the ADMIN_IDS allowlist.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SystemPrompt returns the contents of SYSTEM_PROMPT_FILE, falling back to DefaultSystemPrompt.
func (c *Config) SystemPrompt() string {
	if c.SystemPromptFile == "" {
		return DefaultSystemPrompt
	}
	data, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return DefaultSystemPrompt
	}
	if prompt := strings.TrimSpace(string(data)); prompt != "" {
		return prompt
	}
	return DefaultSystemPrompt
}

// GetGlobal returns the config loaded by the last successful Load call.
func GetGlobal() *Config {
	return globalConfig
}

var Version = "dev"
