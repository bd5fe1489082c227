package fx

import (
	"battleship-server/internal/config"
	"battleship-server/internal/database"
	"battleship-server/internal/game"
	"battleship-server/internal/history"
	"battleship-server/internal/lobby"
	"battleship-server/internal/logger"
	"battleship-server/internal/server"
	"battleship-server/internal/stats"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideStore(cfg *config.Config, log zerolog.Logger) (*stats.Store, error) {
	return stats.New(cfg.RecordsPath, log)
}

func ProvideRegistry(store *stats.Store, hist *history.Repository, log zerolog.Logger) *game.Registry {
	return game.NewRegistry(store, hist, log)
}

func ProvideQueue(registry *game.Registry, log zerolog.Logger) *lobby.Queue {
	return lobby.NewQueue(registry, log)
}

func ProvideRooms(registry *game.Registry, log zerolog.Logger) *lobby.Rooms {
	return lobby.NewRooms(registry, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// persistence
	fx.Provide(history.NewRepository),
	fx.Provide(ProvideStore),
	// game core
	fx.Provide(ProvideRegistry),
	fx.Provide(ProvideQueue),
	fx.Provide(ProvideRooms),
	// transport
	fx.Provide(server.New),
)
