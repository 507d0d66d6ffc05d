package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/champ/internal/config"
	"github.com/felixgeelhaar/champ/internal/queue"
	"github.com/felixgeelhaar/champ/internal/syncer"
)

// redisTTL bounds how long an idle learner's mirror stays in Redis
const redisTTL = 30 * 24 * time.Hour

// setupSync builds the dispatcher. With RabbitMQ configured the daemon only
// publishes and `champ relay` writes to the stores; otherwise the daemon
// writes to Postgres and Redis itself. Unreachable targets are skipped.
func (a *App) setupSync(ctx context.Context) syncer.Port {
	sc := a.Config.Sync

	var sinks []syncer.Sink
	if sc.RabbitMQURL != "" {
		conn, err := queue.NewConnectionForQueue(sc.RabbitMQURL, sc.Queue)
		if err != nil {
			a.logger.Warn("RabbitMQ not available, sync publishing disabled", "error", err)
		} else {
			a.closers = append(a.closers, conn.Close)
			sinks = append(sinks, syncer.NewAMQPSink(conn))
		}
	} else {
		var closers []func() error
		sinks, closers = StoreSinks(ctx, sc, a.logger)
		a.closers = append(a.closers, closers...)
	}

	if len(sinks) == 0 {
		return syncer.Discard{}
	}

	a.dispatcher = syncer.NewDispatcher(syncer.DispatcherConfig{
		Buffer:     sc.Buffer,
		Resilience: syncer.DefaultResilienceConfig(),
		Logger:     a.logger,
	}, sinks...)
	return a.dispatcher
}

// StoreSinks connects the Postgres and Redis sinks that are configured.
// The returned closers release their connections.
func StoreSinks(ctx context.Context, sc config.SyncConfig, logger *slog.Logger) ([]syncer.Sink, []func() error) {
	var sinks []syncer.Sink
	var closers []func() error

	if sc.DatabaseURL != "" {
		pool, err := syncer.NewPostgresPool(ctx, sc.DatabaseURL, 4)
		if err != nil {
			logger.Warn("Postgres not available, skipping sink", "error", err)
		} else {
			sink, err := syncer.NewPostgresSink(ctx, pool)
			if err != nil {
				pool.Close()
				logger.Warn("Postgres sink setup failed", "error", err)
			} else {
				closers = append(closers, func() error { pool.Close(); return nil })
				sinks = append(sinks, sink)
			}
		}
	}

	if sc.RedisAddr != "" {
		client, err := syncer.NewRedisClient(ctx, sc.RedisAddr, "", sc.RedisDB)
		if err != nil {
			logger.Warn("Redis not available, skipping sink", "error", err)
		} else {
			closers = append(closers, client.Close)
			sinks = append(sinks, syncer.NewRedisSink(client, redisTTL))
		}
	}

	for _, s := range sinks {
		logger.Info("sync sink enabled", "sink", s.Name())
	}
	return sinks, closers
}
