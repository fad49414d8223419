package main

import (
	"context"
	"database/sql"
	"net/http"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/robaro12345/SafeTalk/internal/config"
	"github.com/robaro12345/SafeTalk/internal/handler"
	"github.com/robaro12345/SafeTalk/internal/hub"
	"github.com/robaro12345/SafeTalk/internal/presence"
	"github.com/robaro12345/SafeTalk/internal/repository/mongo"
	"github.com/robaro12345/SafeTalk/internal/repository/postgres"
	"github.com/robaro12345/SafeTalk/internal/service"
)

// App is the main application container.
type App struct {
	Config *config.Config
	Hub    *hub.Hub
	Router http.Handler
}

func providePostgresDB(cfg *config.Config) (*sql.DB, func(), error) {
	if err := postgres.RunMigrations(cfg.PostgresURL); err != nil {
		return nil, nil, err
	}
	db, err := postgres.NewDB(cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { db.Close() }
	return db, cleanup, nil
}

func provideMongoDB(ctx context.Context, cfg *config.Config) (*mongodriver.Database, func(), error) {
	db, err := mongo.NewDB(ctx, cfg.MongoURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { db.Client().Disconnect(ctx) }
	return db, cleanup, nil
}

func provideContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	return ctx, func() { cancel() }
}

func provideRegistry() *presence.Registry {
	// The hub installs itself as the transition notifier in NewHub.
	return presence.NewRegistry(nil)
}

func provideRouter(
	ws *handler.WebsocketHandler,
	auth *handler.AuthHandler,
	messages *handler.MessageHandler,
	users *handler.UserHandler,
	authService service.IAuthService,
	cfg *config.Config,
) http.Handler {
	return handler.NewRouter(ws, auth, messages, users, authService, cfg.AllowedOrigins)
}
