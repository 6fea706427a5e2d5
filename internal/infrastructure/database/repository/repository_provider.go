package repository

import (
	"github.com/google/wire"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository/channelrepo"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository/conversationrepo"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository/messagerepo"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/repository/providerrepo"
)

var RepositoryProvider = wire.NewSet(
	channelrepo.NewChannelGormRepository,
	messagerepo.NewMessageGormRepository,
	conversationrepo.NewConversationGormRepository,
	providerrepo.NewProviderConfigGormRepository,
)
