package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/champ/internal/queue"
)

// Relay drains the AMQP sync queue into downstream sinks
type Relay struct {
	consumer *queue.Consumer
	sinks    []Sink
	logger   *slog.Logger
}

// NewRelay creates a relay consuming from conn
func NewRelay(conn *queue.Connection, cfg queue.ConsumerConfig, logger *slog.Logger, sinks ...Sink) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{sinks: sinks, logger: logger}
	r.consumer = queue.NewConsumer(conn, r.Handle, cfg)
	return r
}

// Handle writes one message to every sink and joins their errors
func (r *Relay) Handle(ctx context.Context, msg *queue.Message) error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Write(ctx, msg); err != nil {
			r.logger.Warn("relay write failed", "sink", s.Name(), "message_id", msg.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start begins consuming
func (r *Relay) Start(ctx context.Context) error {
	return r.consumer.Start(ctx)
}

// Stop waits for in-flight messages
func (r *Relay) Stop() {
	r.consumer.Stop()
}
