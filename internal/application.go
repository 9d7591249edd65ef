package application

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/config"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/registry"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/repository"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-lobby/transport/rest"
	"github.com/rocketscienceinc/tictactoe-lobby/transport/websocket"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// RunApp - runs the application until ctx is canceled or a signal arrives.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisStorage, err := storage.NewRedis(ctx, conf.Redis)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	playerRepo := repository.NewPlayerRepository(redisStorage)
	gameRepo := repository.NewGameRepository(redisStorage, conf.Archive.TTL, conf.Archive.History)

	hub := websocket.NewHub(logger)
	gameManager := usecase.NewGameManager(logger, registry.New(), hub, playerRepo, gameRepo,
		usecase.WithArchive(conf.Archive.Enabled),
		usecase.WithQueueSize(conf.Archive.Queue),
	)

	wsServer := websocket.New(logger, gameManager, hub, conf.Websocket)
	httpServer := rest.New(logger, conf.HTTPPort, rest.NewRouter(logger, gameManager, wsServer, conf.PublicURL))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return gameManager.Run(groupCtx)
	})

	group.Go(httpServer.Start)

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if err = group.Wait(); err != nil {
		return fmt.Errorf("application stopped: %w", err)
	}

	return nil
}
