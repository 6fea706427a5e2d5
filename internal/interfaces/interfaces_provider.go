package interfaces

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/facksten/PushRSP-Telegram-bot/internal/config"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/chat"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/command"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/conversation"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/llm"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/message"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/search"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/httpserver"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/httpserver/handlers"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces/telegram"
	"github.com/facksten/PushRSP-Telegram-bot/internal/worker"
)

var InterfacesProvider = wire.NewSet(
	ProvideTelegramBot,
	ProvideHTTPServer,
)

// ProvideTelegramBot returns nil when ENABLE_BOT is off.
func ProvideTelegramBot(
	cfg *config.Config,
	dispatcher *command.Dispatcher,
	chats *chat.Service,
	pool *worker.Pool,
	log zerolog.Logger,
) (*telegram.Bot, error) {
	if !cfg.EnableBot {
		return nil, nil
	}
	api, err := telegram.NewBotAPI(cfg.BotToken, log)
	if err != nil {
		return nil, err
	}
	return telegram.NewBot(api, api.Self.UserName, dispatcher, chats, pool, log), nil
}

// ProvideHTTPServer returns nil when ENABLE_HTTP is off.
func ProvideHTTPServer(
	cfg *config.Config,
	db *gorm.DB,
	engine *search.Engine,
	channels *channel.Service,
	router *llm.Router,
	messages message.Store,
	contexts *conversation.Manager,
	ix *indexer.Indexer,
	log zerolog.Logger,
) *httpserver.HTTPServer {
	if !cfg.EnableHTTP {
		return nil
	}
	var running handlers.RunningIndexes
	if cfg.EnableUserbot {
		running = ix
	}
	ready := func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
	return httpserver.NewHTTPServer(
		httpserver.Config{
			Port:            cfg.HTTPPort,
			APIKey:          cfg.HTTPAPIKey,
			ServiceName:     cfg.ServiceName,
			ShutdownTimeout: cfg.ShutdownTimeout,
		},
		ready,
		handlers.NewSearchHandler(engine),
		handlers.NewChannelHandler(channels),
		handlers.NewStatusHandler(router, channels, messages, contexts, running),
		log,
	)
}
