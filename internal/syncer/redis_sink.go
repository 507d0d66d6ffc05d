package syncer

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/champ/internal/queue"
)

// RedisSink mirrors the latest snapshots into one hash per user so other
// services can read a learner's state without touching Postgres.
type RedisSink struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisClient connects and pings a Redis server
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisSink creates a sink; ttl <= 0 keeps hashes forever
func NewRedisSink(client *goredis.Client, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

func (s *RedisSink) Name() string { return "redis" }

// HashKey returns the hash holding a user's snapshots
func HashKey(userID string) string {
	return "champ:progress:" + userID
}

// HashField returns the field name for a message within the user hash
func HashField(kind, key string) string {
	if key == "" {
		return kind
	}
	return kind + ":" + key
}

func (s *RedisSink) Write(ctx context.Context, msg *queue.Message) error {
	hash := HashKey(msg.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, hash, HashField(msg.Kind, msg.Key), []byte(msg.Payload))
		if s.ttl > 0 {
			pipe.Expire(ctx, hash, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", hash, err)
	}
	return nil
}
