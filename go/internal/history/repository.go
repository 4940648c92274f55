package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wheelhouse/go/internal/models"
)

// Repository stores spin history in Postgres. Entries are append-only
// and never mutated; a re-spin appends a new entry that references the
// one it supersedes.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppendEntry inserts an entry, idempotent on spin_id: a retried
// confirmation gets the already-written entry's ID back instead of a
// duplicate row.
func (r *Repository) AppendEntry(ctx context.Context, entry models.HistoryEntry) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO spin_history (
			id, session_id, spin_id, winner_id, winner_display_name,
			spun_at, is_respin, preceding_entry_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (spin_id) DO UPDATE SET spin_id = EXCLUDED.spin_id
		RETURNING id`,
		entry.ID, entry.SessionID, entry.SpinID, entry.WinnerID, entry.WinnerDisplayName,
		entry.SpunAt, entry.IsReSpin, entry.PrecedingEntryID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to append history entry: %w", err)
	}
	return id, nil
}

// ListBySession returns a session's history, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, spin_id, winner_id, winner_display_name,
		       spun_at, is_respin, preceding_entry_id
		FROM spin_history
		WHERE session_id = $1
		ORDER BY spun_at DESC, id DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SpinID, &e.WinnerID, &e.WinnerDisplayName,
			&e.SpunAt, &e.IsReSpin, &e.PrecedingEntryID); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}
