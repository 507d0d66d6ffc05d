package syncer

import (
	"context"

	"github.com/felixgeelhaar/champ/internal/queue"
)

// AMQPSink publishes sync messages to RabbitMQ for a relay to pick up
type AMQPSink struct {
	producer *queue.Producer
}

// NewAMQPSink creates a sink over an open queue connection
func NewAMQPSink(conn *queue.Connection) *AMQPSink {
	return &AMQPSink{producer: queue.NewProducer(conn)}
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Write(ctx context.Context, msg *queue.Message) error {
	return s.producer.Publish(ctx, msg)
}
