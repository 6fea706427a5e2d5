package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/chat"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/command"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/retry"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/llmprovider"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/lock"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/userbot"
	"github.com/facksten/PushRSP-Telegram-bot/internal/worker"
	"github.com/facksten/PushRSP-Telegram-bot/pkg/telemetry"
)

var ServiceProvider = wire.NewSet(
	ProvideChannelService,
	ProvideConversationManager,
	ProvideRouter,
	ProvideSearchEngine,
	ProvideIndexer,
	ProvideChatService,
	ProvideCommandHandlers,
	ProvideDispatcher,
)

func ProvideChannelService(repo channel.Repository, cfg *config.Config) *channel.Service {
	return channel.NewService(repo, cfg.IsAdmin, cfg.ChannelCacheSize)
}

// ProvideConversationManager keeps history in memory, mirrored to the database when
// CONVERSATION_PERSIST is set.
func ProvideConversationManager(cfg *config.Config, store conversation.Store, log zerolog.Logger) *conversation.Manager {
	if !cfg.ConversationPersist {
		store = nil
	}
	return conversation.NewManager(cfg.HistoryLimit, store, log)
}

func ProvideRouter(providers []llm.Provider, repo llm.ConfigRepository, cfg *config.Config, log zerolog.Logger) *llm.Router {
	defaultKind, _ := llm.ParseKind(cfg.DefaultLLMProvider)
	return llm.NewRouter(providers, repo, llm.RouterOptions{
		DefaultProvider: defaultKind,
		SystemPrompt:    cfg.SystemPrompt(),
		Timeout:         cfg.ProviderTimeout,
		Temperature:     cfg.LLMTemperature,
		MaxTokens:       cfg.LLMMaxTokens,
		Credentials:     llmprovider.Credentials(cfg.ProviderEntries()),
	}, log)
}

func ProvideSearchEngine(store message.Store, channels *channel.Service, cfg *config.Config, log zerolog.Logger) *search.Engine {
	return search.NewEngine(store, channels, search.EngineConfig{
		Weights: search.Weights{
			TF:              cfg.SearchWeightTF,
			Recency:         cfg.SearchWeightRecency,
			Engagement:      cfg.SearchWeightEngagement,
			RecencyHalfLife: cfg.SearchRecencyHalfLife,
		},
		DefaultLimit: cfg.SearchResultLimit,
	}, log)
}

func ProvideIndexer(
	source indexer.Source,
	store message.Store,
	channels *channel.Service,
	locker lock.Locker,
	cfg *config.Config,
	log zerolog.Logger,
) *indexer.Indexer {
	return indexer.New(source, store, channels, locker, indexer.Options{
		PageSize:       cfg.IndexPageSize,
		PagesPerSecond: cfg.IndexPagesPerSecond,
		Concurrency:    cfg.IndexConcurrency,
		Retry: retry.Policy{
			MaxRetries:      cfg.IndexMaxRetries,
			InitialDelay:    cfg.IndexRetryInitialDelay,
			MaxDelay:        cfg.IndexRetryMaxDelay,
			BackoffStrategy: retry.BackoffExponential,
			JitterFactor:    0.1,
		},
	}, log)
}

func ProvideChatService(contexts *conversation.Manager, router *llm.Router, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *chat.Service {
	return chat.NewService(contexts, router, sanitizer, log)
}

// ProvideCommandHandlers binds the command table to the domain services. Without a
// userbot session the index commands answer with a hint and /addchannel skips the title
// lookup.
func ProvideCommandHandlers(
	cfg *config.Config,
	channels *channel.Service,
	engine *search.Engine,
	ix *indexer.Indexer,
	router *llm.Router,
	chats *chat.Service,
	contexts *conversation.Manager,
	messages message.Store,
	background *worker.Background,
	client *userbot.Client,
) *command.Handlers {
	h := &command.Handlers{
		Channels:       channels,
		Search:         engine,
		Indexer:        ix,
		Providers:      router,
		Conversations:  chats,
		Stats:          contexts,
		Messages:       messages,
		Runner:         background,
		IndexerEnabled: cfg.EnableUserbot,
	}
	if client != nil {
		h.Lookup = client
	}
	return h
}

func ProvideDispatcher(cfg *config.Config, handlers *command.Handlers, log zerolog.Logger) *command.Dispatcher {
	d := command.NewDispatcher(cfg.IsAdmin, log)
	handlers.Register(d)
	return d
}
