//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/robaro12345/SafeTalk/internal/config"
	"github.com/robaro12345/SafeTalk/internal/delivery"
	"github.com/robaro12345/SafeTalk/internal/handler"
	"github.com/robaro12345/SafeTalk/internal/hub"
	"github.com/robaro12345/SafeTalk/internal/receipt"
	"github.com/robaro12345/SafeTalk/internal/repository/mongo"
	"github.com/robaro12345/SafeTalk/internal/repository/postgres"
	"github.com/robaro12345/SafeTalk/internal/service"
)

// InitializeApp creates a new application.
func InitializeApp() (*App, func(), error) {
	wire.Build(
		config.Load,
		// Database & Context Providers
		wire.NewSet(
			provideContext,
			providePostgresDB,
			provideMongoDB,
		),
		// Repository Providers
		wire.NewSet(
			postgres.NewUserRepository,
			wire.Bind(new(service.IUserRepository), new(*postgres.UserRepository)),

			postgres.NewTokenRepository,
			wire.Bind(new(service.ITokenRepository), new(*postgres.TokenRepository)),

			mongo.NewMessageRepository,
			wire.Bind(new(service.IMessageRepository), new(*mongo.MessageRepository)),
		),
		// Service Providers
		wire.NewSet(
			service.NewUserService,
			wire.Bind(new(service.IUserService), new(*service.UserService)),

			service.NewAuthService,
			wire.Bind(new(service.IAuthService), new(*service.AuthService)),
		),
		// Real-time Core Providers
		wire.NewSet(
			provideRegistry,
			hub.NewRoomSet,
			wire.Bind(new(delivery.RoomBroadcaster), new(*hub.RoomSet)),
			delivery.NewPipeline,
			receipt.NewTracker,
			hub.NewHub,
		),
		// HTTP Providers
		wire.NewSet(
			handler.NewWebsocketHandler,
			handler.NewAuthHandler,
			handler.NewMessageHandler,
			handler.NewUserHandler,
			provideRouter,
		),
		// App Provider
		wire.NewSet(
			wire.Struct(new(App), "*"),
		),
	)
	return nil, nil, nil
}
