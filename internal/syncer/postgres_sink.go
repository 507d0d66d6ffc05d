package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/champ/internal/queue"
)

const progressSyncSchema = `
CREATE TABLE IF NOT EXISTS progress_sync (
    user_id    TEXT        NOT NULL,
    kind       TEXT        NOT NULL,
    key        TEXT        NOT NULL DEFAULT '',
    payload    JSONB       NOT NULL,
    message_id UUID        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, kind, key)
)`

// upsert keeps the newest snapshot per (user, kind, key); stale redeliveries lose
const progressSyncUpsert = `
INSERT INTO progress_sync (user_id, kind, key, payload, message_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, kind, key) DO UPDATE SET
    payload    = EXCLUDED.payload,
    message_id = EXCLUDED.message_id,
    updated_at = EXCLUDED.updated_at
WHERE progress_sync.updated_at <= EXCLUDED.updated_at`

// PostgresSink stores the latest snapshot of each synced record
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresPool opens and pings a pgx pool
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresSink creates the sink and ensures its table exists
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool) (*PostgresSink, error) {
	if _, err := pool.Exec(ctx, progressSyncSchema); err != nil {
		return nil, fmt.Errorf("create progress_sync table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, msg *queue.Message) error {
	_, err := s.pool.Exec(ctx, progressSyncUpsert,
		msg.UserID, msg.Kind, msg.Key, []byte(msg.Payload), msg.ID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress_sync: %w", err)
	}
	return nil
}
