package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent represents an outbox event for the relay worker. Rows
// are written in the same transaction as the spin record mutation they
// describe, so a committed write always reaches the feed eventually.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// EventPublisher pushes an outbox event onto the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
