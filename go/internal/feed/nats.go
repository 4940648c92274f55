package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the JetStream-backed feed.
type NATSConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // e.g. "spin.records"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default JetStream feed configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		StreamName:    "SPIN_RECORDS",
		SubjectPrefix: "spin.records",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSFeed implements Feed on a JetStream stream keyed one subject per
// session. JetStream preserves order within a subject, which is
// exactly the per-session ordering guarantee subscribers need, and the
// last-per-subject deliver policy replays the latest snapshot on
// connect, so the reconciler's first-snapshot logic doubles as its
// reconnect catch-up.
type NATSFeed struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config NATSConfig
}

// NewNATSFeed connects to NATS and ensures the spin record stream
// exists.
func NewNATSFeed(config NATSConfig) (*NATSFeed, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
		Name:     config.StreamName,
		Subjects: []string{config.SubjectPrefix + ".>"},
		// One retained message per subject: the stream mirrors the
		// keyed-singleton shape of the record itself.
		MaxMsgsPerSubject: 1,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &NATSFeed{nc: nc, js: js, config: config}, nil
}

// Subscribe opens an ordered consumer filtered to the session's
// subject.
func (f *NATSFeed) Subscribe(ctx context.Context, sessionID uuid.UUID) (*Subscription, error) {
	subject := fmt.Sprintf("%s.%s", f.config.SubjectPrefix, sessionID)

	consumer, err := f.js.OrderedConsumer(ctx, f.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	sub := newSubscription(16, nil)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		rec, err := decodeSnapshot(msg.Data())
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed snapshot")
			return
		}
		if !sub.deliver(*rec) {
			log.Warn().Str("session_id", sessionID.String()).Msg("subscriber buffer full, dropping snapshot")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}
	sub.stop = consumeCtx.Stop

	if ctx != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub, nil
}

// Close shuts down the underlying NATS connection.
func (f *NATSFeed) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}

// decodeSnapshot unwraps the outbox relay's event envelope into the
// record snapshot it carries.
func decodeSnapshot(data []byte) (*models.SpinRecord, error) {
	var envelope struct {
		EventID   string          `json:"eventId"`
		EventType string          `json:"eventType"`
		SessionID string          `json:"sessionId"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}

	var body struct {
		Record models.SpinRecord `json:"record"`
	}
	if err := json.Unmarshal(envelope.Payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", envelope.EventType, err)
	}
	if body.Record.SpinID == uuid.Nil {
		return nil, fmt.Errorf("%s payload has no record", envelope.EventType)
	}
	return &body.Record, nil
}
