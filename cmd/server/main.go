package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"battleship-server/internal/config"
	"battleship-server/internal/constants"
	fxmodules "battleship-server/internal/fx"
	"battleship-server/internal/game"
	"battleship-server/internal/history"
	"battleship-server/internal/lobby"
	"battleship-server/internal/server"
	"battleship-server/internal/stats"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	srv *server.Server,
	registry *game.Registry,
	queue *lobby.Queue,
	rooms *lobby.Rooms,
	store *stats.Store,
	hist *history.Repository,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: server.NewHTTPHandler(srv, registry, queue, rooms, store, hist, logger),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Start(); err != nil {
				return err
			}
			go func() {
				logger.Info().Str("addr", httpSrv.Addr).Msg("http api starting")
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("http api failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Stop(shutdownCtx); err != nil && err != context.Canceled {
				logger.Warn().Err(err).Msg("error stopping tcp server")
			}
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("http shutdown failed")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
