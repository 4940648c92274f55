package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
)

// Feed is the read-only subscription surface for spin record
// snapshots. Delivery is at-least-once and order-preserving per
// session; subscribers must tolerate duplicates. No ordering holds
// across distinct sessions.
type Feed interface {
	// Subscribe opens a stream of record snapshots for one session.
	// Cancelling the subscription (or ctx) stops delivery; no snapshot
	// is delivered after Cancel returns.
	Subscribe(ctx context.Context, sessionID uuid.UUID) (*Subscription, error)
}

// Subscription is one observer's handle on a session's record stream.
type Subscription struct {
	ch   chan models.SpinRecord
	once sync.Once
	stop func()

	mu     sync.Mutex
	closed bool
}

func newSubscription(buffer int, stop func()) *Subscription {
	return &Subscription{
		ch:   make(chan models.SpinRecord, buffer),
		stop: stop,
	}
}

// Records returns the snapshot channel. It is closed on Cancel.
func (s *Subscription) Records() <-chan models.SpinRecord {
	return s.ch
}

// Cancel stops delivery. Safe to call from any state, any number of
// times; no snapshot arrives after it returns.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}

// deliver hands a snapshot to the subscriber without blocking. A
// subscriber that cannot keep up loses intermediate snapshots, which
// reconciliation tolerates: only the latest snapshot matters.
// Returns false when the snapshot was dropped.
func (s *Subscription) deliver(rec models.SpinRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- rec:
		return true
	default:
		return false
	}
}
