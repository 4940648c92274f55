package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wheelhouse/go/internal/models"
)

// ErrSessionNotFound is returned when no session matches the lookup.
var ErrSessionNotFound = errors.New("session not found")

// Repository stores sessions in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateSession(ctx context.Context, s models.Session) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, name, join_code, admin_key, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, name, join_code, admin_key, created_at`,
		s.ID, s.Name, s.JoinCode, s.AdminKey)

	var created models.Session
	if err := row.Scan(&created.ID, &created.Name, &created.JoinCode, &created.AdminKey, &created.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &created, nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return r.scanSession(r.pool.QueryRow(ctx, `
		SELECT id, name, join_code, admin_key, created_at
		FROM sessions
		WHERE id = $1`, id))
}

func (r *Repository) GetSessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error) {
	return r.scanSession(r.pool.QueryRow(ctx, `
		SELECT id, name, join_code, admin_key, created_at
		FROM sessions
		WHERE join_code = $1`, joinCode))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	if err := row.Scan(&s.ID, &s.Name, &s.JoinCode, &s.AdminKey, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}
