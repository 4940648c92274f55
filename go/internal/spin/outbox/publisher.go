package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// MockPublisher is a simple in-memory publisher for development/testing
type MockPublisher struct {
	logger *slog.Logger
}

func NewMockPublisher(logger *slog.Logger) *MockPublisher {
	return &MockPublisher{logger: logger}
}

func (p *MockPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	p.logger.Info("publishing event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("session_id", event.SessionID.String()))
	return nil
}

// NATSPublisher publishes outbox events to a JetStream stream with one
// subject per session. Per-subject ordering in JetStream is what
// preserves per-session delivery order end to end; the outbox event ID
// doubles as the message ID so JetStream deduplicates relay retries.
type NATSPublisher struct {
	js            jetstream.JetStream
	streamName    string
	subjectPrefix string
	logger        *slog.Logger
}

func NewNATSPublisher(nc *nats.Conn, streamName, subjectPrefix string, logger *slog.Logger) (*NATSPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
		Name:              streamName,
		Subjects:          []string{subjectPrefix + ".>"},
		MaxMsgsPerSubject: 1,
	}); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &NATSPublisher{
		js:            js,
		streamName:    streamName,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, event.SessionID)

	envelope := map[string]interface{}{
		"eventId":   event.ID.String(),
		"eventType": event.EventType,
		"sessionId": event.SessionID.String(),
		"timestamp": event.CreatedAt,
		"payload":   json.RawMessage(event.Payload),
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, messageBytes, jetstream.WithMsgID(event.ID.String())); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("published event",
		slog.String("subject", subject),
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType))

	return nil
}
