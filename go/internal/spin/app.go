package spin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/selector"
	"github.com/mcdev12/wheelhouse/go/internal/spin/events"
	"github.com/rs/zerolog/log"
)

// SpinRepository defines what the app layer needs from the spin record
// store. Publish and retire are conditional single-key writes: the
// store's per-key serialization is what makes the at-most-one-active
// invariant hold under concurrent initiators.
type SpinRepository interface {
	GetSpinRecord(ctx context.Context, sessionID uuid.UUID) (*models.SpinRecord, error)
	// PublishSpinRecord writes rec and its outbox event in one
	// transaction, but only if the session's slot holds no active,
	// unexpired record and the previous publish is older than the
	// cooldown cutoff. Returns false when the guard rejects the write.
	PublishSpinRecord(ctx context.Context, rec models.SpinRecord, payload []byte, cooldownCutoff, expiryCutoff time.Time) (bool, error)
	// RetireSpinRecord clears is_active for the record matching spinID
	// and writes the retirement event in the same transaction. Returns
	// false when no active record with that spin ID exists.
	RetireSpinRecord(ctx context.Context, sessionID, spinID uuid.UUID, eventType string, payload []byte) (bool, error)
}

// RosterProvider defines what the app layer needs from the roster.
// Ordering is by join time ascending; the coordinator never mutates it
// beyond removing a confirmed winner.
type RosterProvider interface {
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	// RemoveParticipant must be idempotent: removing an already-removed
	// participant is not an error.
	RemoveParticipant(ctx context.Context, id uuid.UUID) error
}

// HistorySink defines what the app layer needs from the history store.
type HistorySink interface {
	// AppendEntry must be idempotent keyed by entry.SpinID so a retried
	// confirmation never produces a second entry.
	AppendEntry(ctx context.Context, entry models.HistoryEntry) (uuid.UUID, error)
}

// Authorizer answers whether a caller holds the session's admin key.
type Authorizer interface {
	IsPrivileged(ctx context.Context, sessionID uuid.UUID, adminKey string) (bool, error)
}

// App is the spin coordinator: the single authoritative writer of a
// session's spin record. All winner selection and angle math happens
// here; observers only ever read.
type App struct {
	repo     SpinRepository
	roster   RosterProvider
	history  HistorySink
	auth     Authorizer
	selector *selector.Selector
	policy   Policy
	clock    clockwork.Clock
}

// NewApp creates a new spin coordinator App.
func NewApp(repo SpinRepository, roster RosterProvider, history HistorySink, auth Authorizer, sel *selector.Selector, policy Policy) *App {
	return &App{
		repo:     repo,
		roster:   roster,
		history:  history,
		auth:     auth,
		selector: sel,
		policy:   policy,
		clock:    clockwork.NewRealClock(),
	}
}

// WithClock swaps the coordinator's clock. Tests inject a fake clock
// to drive cooldown and TTL math deterministically.
func (a *App) WithClock(clock clockwork.Clock) *App {
	a.clock = clock
	return a
}

// InitiateSpin selects a winner, builds a fresh spin record, and
// publishes it atomically. Exactly one of any set of concurrent calls
// succeeds while a record is active; the rest get ErrAlreadySpinning.
func (a *App) InitiateSpin(ctx context.Context, req InitiateSpinRequest) (*InitiateSpinResult, error) {
	privileged, err := a.auth.IsPrivileged(ctx, req.SessionID, req.AdminKey)
	if err != nil {
		return nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !privileged {
		return nil, ErrUnauthorized
	}

	// Fetch the roster fresh, server-side. The published record snapshots
	// its size so later roster mutations never skew the angle math.
	roster, err := a.roster.ListParticipants(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}

	now := a.clock.Now()

	// Pre-check the slot so callers get the precise precondition error.
	// The conditional write below remains the authoritative guard.
	if prev, err := a.repo.GetSpinRecord(ctx, req.SessionID); err == nil {
		if prev.IsActive && now.Sub(prev.PublishedAt) < a.policy.ActiveTTL {
			return nil, ErrAlreadySpinning
		}
		if a.policy.Cooldown > 0 && now.Sub(prev.PublishedAt) < a.policy.Cooldown {
			return nil, ErrCooldownActive
		}
	} else if !errors.Is(err, ErrNoSpinRecord) {
		return nil, fmt.Errorf("failed to read spin record: %w", err)
	}

	sel, err := a.selector.Select(roster)
	if err != nil {
		return nil, fmt.Errorf("winner selection failed: %w", err)
	}
	winner := roster[sel.WinnerIndex]

	rec := models.SpinRecord{
		SessionID: req.SessionID,
		SpinID:    uuid.New(),
		IsActive:  true,
		Winner: &models.Winner{
			ID:          winner.ID,
			DisplayName: winner.DisplayName,
		},
		TargetAngle:            sel.TargetAngle,
		DurationSeconds:        sel.DurationSeconds,
		PublishedAt:            now,
		ParticipantCountAtSpin: len(roster),
		ReSpinOf:               req.ReSpinOf,
	}

	payload, err := json.Marshal(events.SpinPublishedPayload{Record: rec})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SpinPublished payload: %w", err)
	}

	ok, err := a.repo.PublishSpinRecord(ctx, rec, payload, now.Add(-a.policy.Cooldown), now.Add(-a.policy.ActiveTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to publish spin record: %w", err)
	}
	if !ok {
		// Lost the race to a concurrent initiator.
		return nil, ErrAlreadySpinning
	}

	log.Info().
		Str("session_id", req.SessionID.String()).
		Str("spin_id", rec.SpinID.String()).
		Int("participants", rec.ParticipantCountAtSpin).
		Float64("target_angle", rec.TargetAngle).
		Float64("duration_sec", rec.DurationSeconds).
		Msg("spin published")

	return &InitiateSpinResult{
		SpinID:            rec.SpinID,
		WinnerID:          winner.ID,
		WinnerDisplayName: winner.DisplayName,
		TargetAngle:       rec.TargetAngle,
		DurationSeconds:   rec.DurationSeconds,
		PublishedAt:       rec.PublishedAt,
	}, nil
}

// ConfirmWinner appends the history entry, removes the winner from the
// roster, and retires the record, in that order. Each step is
// idempotent so a retry after a partial failure is safe; the record
// only retires once both earlier steps have succeeded.
func (a *App) ConfirmWinner(ctx context.Context, req ConfirmWinnerRequest) (*ConfirmWinnerResult, error) {
	privileged, err := a.auth.IsPrivileged(ctx, req.SessionID, req.AdminKey)
	if err != nil {
		return nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !privileged {
		return nil, ErrUnauthorized
	}

	rec, err := a.repo.GetSpinRecord(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, ErrNoSpinRecord) {
			return nil, ErrStaleConfirmation
		}
		return nil, fmt.Errorf("failed to read spin record: %w", err)
	}
	if !rec.IsActive || rec.SpinID != req.SpinID {
		return nil, ErrStaleConfirmation
	}
	if rec.Winner == nil {
		return nil, fmt.Errorf("active record %s has no winner", rec.SpinID)
	}

	entry := models.HistoryEntry{
		ID:                uuid.New(),
		SessionID:         rec.SessionID,
		SpinID:            rec.SpinID,
		WinnerID:          rec.Winner.ID,
		WinnerDisplayName: rec.Winner.DisplayName,
		SpunAt:            rec.PublishedAt,
		IsReSpin:          rec.ReSpinOf != nil,
		PrecedingEntryID:  rec.ReSpinOf,
	}

	entryID, err := a.history.AppendEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryWriteFailed, err)
	}

	if err := a.roster.RemoveParticipant(ctx, rec.Winner.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRosterRemovalFailed, err)
	}

	retired := *rec
	retired.IsActive = false
	payload, err := json.Marshal(events.WinnerConfirmedPayload{
		Record:         retired,
		HistoryEntryID: entryID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal WinnerConfirmed payload: %w", err)
	}

	// A false here means a concurrent retry already retired the record;
	// history and roster are idempotent, so that is a success.
	if _, err := a.repo.RetireSpinRecord(ctx, req.SessionID, req.SpinID, events.EventTypeWinnerConfirmed, payload); err != nil {
		return nil, fmt.Errorf("failed to retire spin record: %w", err)
	}

	log.Info().
		Str("session_id", req.SessionID.String()).
		Str("spin_id", req.SpinID.String()).
		Str("winner_id", rec.Winner.ID.String()).
		Str("history_entry_id", entryID.String()).
		Msg("winner confirmed")

	return &ConfirmWinnerResult{HistoryEntryID: entryID}, nil
}

// CancelSpin force-retires an active record without confirming a
// winner. Recovery tool, not part of the happy path.
func (a *App) CancelSpin(ctx context.Context, req CancelSpinRequest) error {
	privileged, err := a.auth.IsPrivileged(ctx, req.SessionID, req.AdminKey)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !privileged {
		return ErrUnauthorized
	}

	rec, err := a.repo.GetSpinRecord(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, ErrNoSpinRecord) {
			return ErrStaleConfirmation
		}
		return fmt.Errorf("failed to read spin record: %w", err)
	}
	if !rec.IsActive || rec.SpinID != req.SpinID {
		return ErrStaleConfirmation
	}

	cancelled := *rec
	cancelled.IsActive = false
	payload, err := json.Marshal(events.SpinCancelledPayload{
		Record: cancelled,
		Reason: req.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SpinCancelled payload: %w", err)
	}

	if _, err := a.repo.RetireSpinRecord(ctx, req.SessionID, req.SpinID, events.EventTypeSpinCancelled, payload); err != nil {
		return fmt.Errorf("failed to retire spin record: %w", err)
	}

	log.Info().
		Str("session_id", req.SessionID.String()).
		Str("spin_id", req.SpinID.String()).
		Str("reason", req.Reason).
		Msg("spin cancelled")

	return nil
}

// GetSpinRecord returns the session's current record, for state reads
// by late-joining clients before their feed subscription catches up.
func (a *App) GetSpinRecord(ctx context.Context, sessionID uuid.UUID) (*models.SpinRecord, error) {
	rec, err := a.repo.GetSpinRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
