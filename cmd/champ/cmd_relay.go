package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/champ/internal/app"
	"github.com/felixgeelhaar/champ/internal/config"
	"github.com/felixgeelhaar/champ/internal/queue"
	"github.com/felixgeelhaar/champ/internal/syncer"
)

// cmdRelay drains the sync queue into Postgres and Redis until interrupted
func cmdRelay() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sc := cfg.Sync
	if sc.RabbitMQURL == "" {
		return fmt.Errorf("sync.rabbitmq_url is not configured")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sinks, closers := app.StoreSinks(ctx, sc, logger)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close sink", "error", err)
			}
		}
	}()
	if len(sinks) == 0 {
		return fmt.Errorf("no reachable sync store (set sync.database_url or sync.redis_addr)")
	}

	conn, err := queue.NewConnectionForQueue(sc.RabbitMQURL, sc.Queue)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	relay := syncer.NewRelay(conn, queue.DefaultConsumerConfig(), logger, sinks...)
	if err := relay.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	logger.Info("relay running", "queue", sc.Queue, "sinks", len(sinks))

	<-ctx.Done()
	relay.Stop()
	return nil
}
