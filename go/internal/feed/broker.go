package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Broker is an in-process Feed for tests and single-node deployments.
// The coordinator's repository publishes committed writes straight
// into it, which trivially preserves per-session order: there is a
// single writer and publishes happen in commit order.
type Broker struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uuid.UUID]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new observer for the session.
func (b *Broker) Subscribe(ctx context.Context, sessionID uuid.UUID) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sub *Subscription
	sub = newSubscription(16, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[sessionID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
	})

	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[*Subscription]struct{})
	}
	b.subs[sessionID][sub] = struct{}{}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub, nil
}

// Publish fans a snapshot out to every subscriber of its session.
func (b *Broker) Publish(rec models.SpinRecord) {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs[rec.SessionID]))
	for sub := range b.subs[rec.SessionID] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		if !sub.deliver(rec) {
			log.Warn().
				Str("session_id", rec.SessionID.String()).
				Str("spin_id", rec.SpinID.String()).
				Msg("subscriber buffer full, dropping snapshot")
		}
	}
}

// PublishPayload adapts an outbox-style event payload into a snapshot
// publish. Malformed payloads are logged and dropped, never fatal.
// This is the hook handed to spin.NewMemoryRepository in single-node
// mode.
func (b *Broker) PublishPayload(eventType string, payload json.RawMessage) {
	var body struct {
		Record models.SpinRecord `json:"record"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("dropping malformed event payload")
		return
	}
	b.Publish(body.Record)
}
