//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure"
	"github.com/facksten/PushRSP-Telegram-bot/internal/interfaces"
)

func CreateApplication() (*Application, func(), error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}

func CreateToolkit() (*Toolkit, func(), error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		wire.Struct(new(Toolkit), "*"),
	)
	return nil, nil, nil
}
