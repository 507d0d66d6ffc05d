package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes sync messages to the queue
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// Publish sends a sync message, filling in ID and timestamp when absent
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish sync message: %w", err)
	}

	slog.Debug("published sync message",
		"message_id", msg.ID,
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"key", msg.Key,
	)

	return nil
}

// NewMessage builds a message with a JSON payload
func NewMessage(kind, userID, key string, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New(),
		Kind:      kind,
		UserID:    userID,
		Key:       key,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}
