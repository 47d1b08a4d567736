package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-relay/internal/config"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-relay/internal/transport/redis"
	"github.com/rocketscienceinc/tictactoe-relay/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-relay/transport/rest"
	"github.com/rocketscienceinc/tictactoe-relay/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	hub := websocket.NewHub(logger)

	var (
		rooms     repository.RoomRepository
		publisher usecase.Publisher
	)

	switch conf.Storage {
	case config.StorageRedis:
		redisStorage, err := storage.New(ctx, storage.RedisOptions{
			Addr:     conf.Redis.GetRedisAddr(),
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		broker := redis.NewBroker(logger, redisStorage, hub)
		group.Go(func() error {
			return broker.Run(groupCtx)
		})

		rooms = repository.NewRoomRepository(redisStorage)
		publisher = broker
	default:
		rooms = repository.NewMemoryRoomRepository()
		publisher = hub
	}

	log.Info("Room storage selected", "storage", conf.Storage)

	relay := usecase.NewRelay(logger, rooms, publisher, usecase.RelayOptions{
		EnforceMembership: conf.Room.EnforceMembership,
	})

	if conf.Room.IdleTimeout > 0 {
		group.Go(func() error {
			log.Info("Starting idle room janitor", "idleTimeout", conf.Room.IdleTimeout, "interval", conf.Room.SweepInterval)
			return relay.RunJanitor(groupCtx, conf.Room.IdleTimeout, conf.Room.SweepInterval)
		})
	}

	// run HTTP server
	httpServer := rest.New(logger, rooms, rest.Options{
		StaticDir:      conf.StaticDir,
		AllowedOrigins: conf.AllowedOrigins,
	})
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if err := httpServer.Start(groupCtx, conf.HTTPPort); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// run Websocket server
	wsServer := websocket.New(logger, hub, relay, websocket.Options{
		AllowedOrigins: conf.AllowedOrigins,
		SendBuffer:     conf.Room.SendBuffer,
	})
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if err := wsServer.Start(groupCtx, conf.SocketPort); err != nil {
			return fmt.Errorf("WebSocket server error: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	log.Info("Application stopped")

	return nil
}
