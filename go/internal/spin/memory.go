package spin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/spin/events"
)

// MemoryRepository is an in-memory SpinRepository with the same
// conditional-write semantics as the Postgres implementation. Used by
// tests and single-node deployments; the publish hook replaces the
// outbox relay by delivering events directly to an in-process feed.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]models.SpinRecord

	// publish, when set, is called under the lock for every committed
	// write, preserving per-session delivery order.
	publish func(eventType string, payload json.RawMessage)
}

func NewMemoryRepository(publish func(eventType string, payload json.RawMessage)) *MemoryRepository {
	return &MemoryRepository{
		records: make(map[uuid.UUID]models.SpinRecord),
		publish: publish,
	}
}

func (r *MemoryRepository) GetSpinRecord(ctx context.Context, sessionID uuid.UUID) (*models.SpinRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sessionID]
	if !ok {
		return nil, ErrNoSpinRecord
	}
	return &rec, nil
}

func (r *MemoryRepository) PublishSpinRecord(ctx context.Context, rec models.SpinRecord, payload []byte, cooldownCutoff, expiryCutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.records[rec.SessionID]; ok {
		if prev.IsActive && prev.PublishedAt.After(expiryCutoff) {
			return false, nil
		}
		if prev.PublishedAt.After(cooldownCutoff) {
			return false, nil
		}
	}

	r.records[rec.SessionID] = rec
	if r.publish != nil {
		r.publish(events.EventTypeSpinPublished, payload)
	}
	return true, nil
}

func (r *MemoryRepository) RetireSpinRecord(ctx context.Context, sessionID, spinID uuid.UUID, eventType string, payload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sessionID]
	if !ok || !rec.IsActive || rec.SpinID != spinID {
		return false, nil
	}

	rec.IsActive = false
	r.records[sessionID] = rec
	if r.publish != nil {
		r.publish(eventType, payload)
	}
	return true, nil
}
