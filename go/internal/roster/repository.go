package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wheelhouse/go/internal/models"
)

// Repository stores participants in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateParticipant(ctx context.Context, sessionID uuid.UUID, displayName string) (*models.Participant, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO participants (id, session_id, display_name, joined_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, session_id, display_name, joined_at`,
		uuid.New(), sessionID, displayName)

	var p models.Participant
	if err := row.Scan(&p.ID, &p.SessionID, &p.DisplayName, &p.JoinedAt); err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &p, nil
}

func (r *Repository) ListParticipantsBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, display_name, joined_at
		FROM participants
		WHERE session_id = $1
		ORDER BY joined_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.DisplayName, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}
	return participants, nil
}

// RemoveParticipant deletes by ID. Zero rows affected is not an error.
func (r *Repository) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}
