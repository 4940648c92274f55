package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository reads and settles outbox rows. The relay worker runs as
// its own process with its own database/sql connection; row locking
// with SKIP LOCKED lets several relay instances drain the same table
// without double-publishing inside one polling cycle.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FetchUnsent locks and returns up to limit unsent events in creation
// order. Must run inside the transaction that later marks them sent.
func (r *Repository) FetchUnsent(ctx context.Context, tx *sql.Tx, limit int32) ([]OutboxEvent, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, session_id, event_type, payload, created_at
		FROM spin_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox events: %w", err)
	}
	return events, nil
}

// MarkSent stamps the given events as published.
func (r *Repository) MarkSent(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE spin_outbox SET sent_at = now() WHERE id = ANY($1)`,
		pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark events as sent: %w", err)
	}
	return nil
}
