package spin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/spin/events"
	"github.com/mcdev12/wheelhouse/go/internal/sqlutil"
)

// Repository stores spin records in Postgres. The session_id primary
// key gives the keyed-singleton slot; conditional upserts on that key
// carry the at-most-one-active invariant.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetSpinRecord(ctx context.Context, sessionID uuid.UUID) (*models.SpinRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT session_id, spin_id, is_active, winner_id, winner_display_name,
		       target_angle, duration_seconds, published_at,
		       participant_count_at_spin, respin_of
		FROM spin_records
		WHERE session_id = $1`, sessionID)

	var (
		rec               models.SpinRecord
		winnerID          *uuid.UUID
		winnerDisplayName *string
	)
	err := row.Scan(&rec.SessionID, &rec.SpinID, &rec.IsActive, &winnerID, &winnerDisplayName,
		&rec.TargetAngle, &rec.DurationSeconds, &rec.PublishedAt,
		&rec.ParticipantCountAtSpin, &rec.ReSpinOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSpinRecord
		}
		return nil, fmt.Errorf("failed to get spin record: %w", err)
	}

	if winnerID != nil && winnerDisplayName != nil {
		rec.Winner = &models.Winner{ID: *winnerID, DisplayName: *winnerDisplayName}
	}
	return &rec, nil
}

func (r *Repository) PublishSpinRecord(ctx context.Context, rec models.SpinRecord, payload []byte, cooldownCutoff, expiryCutoff time.Time) (bool, error) {
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		var winnerID *uuid.UUID
		var winnerDisplayName *string
		if rec.Winner != nil {
			winnerID = &rec.Winner.ID
			winnerDisplayName = &rec.Winner.DisplayName
		}

		// The WHERE clause on the conflict update is the invariant:
		// the slot only flips to a new spin when the previous record is
		// retired (or expired) and outside the cooldown window.
		tag, err := tx.Exec(ctx, `
			INSERT INTO spin_records (
				session_id, spin_id, is_active, winner_id, winner_display_name,
				target_angle, duration_seconds, published_at,
				participant_count_at_spin, respin_of
			) VALUES ($1, $2, true, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (session_id) DO UPDATE SET
				spin_id = EXCLUDED.spin_id,
				is_active = true,
				winner_id = EXCLUDED.winner_id,
				winner_display_name = EXCLUDED.winner_display_name,
				target_angle = EXCLUDED.target_angle,
				duration_seconds = EXCLUDED.duration_seconds,
				published_at = EXCLUDED.published_at,
				participant_count_at_spin = EXCLUDED.participant_count_at_spin,
				respin_of = EXCLUDED.respin_of
			WHERE (NOT spin_records.is_active OR spin_records.published_at <= $11)
			  AND spin_records.published_at <= $10`,
			rec.SessionID, rec.SpinID, winnerID, winnerDisplayName,
			rec.TargetAngle, rec.DurationSeconds, rec.PublishedAt,
			rec.ParticipantCountAtSpin, rec.ReSpinOf,
			cooldownCutoff, expiryCutoff)
		if err != nil {
			return fmt.Errorf("failed to upsert spin record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Guard rejected the write; abort so no outbox row leaks.
			return errPublishRejected
		}

		return insertOutboxEvent(ctx, tx, rec.SessionID, events.EventTypeSpinPublished, payload)
	})
	if err != nil {
		if errors.Is(err, errPublishRejected) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) RetireSpinRecord(ctx context.Context, sessionID, spinID uuid.UUID, eventType string, payload []byte) (bool, error) {
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE spin_records
			SET is_active = false
			WHERE session_id = $1 AND spin_id = $2 AND is_active`,
			sessionID, spinID)
		if err != nil {
			return fmt.Errorf("failed to retire spin record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errPublishRejected
		}

		return insertOutboxEvent(ctx, tx, sessionID, eventType, payload)
	})
	if err != nil {
		if errors.Is(err, errPublishRejected) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// errPublishRejected signals a conditional write whose guard failed;
// it rolls the transaction back and is mapped to a false return.
var errPublishRejected = errors.New("conditional write rejected")

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, eventType string, payload []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO spin_outbox (id, session_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), sessionID, eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}
