package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionRepository defines what the app layer needs from the session
// store.
type SessionRepository interface {
	CreateSession(ctx context.Context, s models.Session) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error)
}

// App handles session business logic and doubles as the spin
// coordinator's authorization provider: a caller is privileged iff it
// presents the admin key issued at session creation.
type App struct {
	repo SessionRepository
}

// NewApp creates a new session App.
func NewApp(repo SessionRepository) *App {
	return &App{repo: repo}
}

// CreateSession creates a session with a fresh join code and admin key.
func (a *App) CreateSession(ctx context.Context, name string) (*models.Session, error) {
	joinCode, err := newJoinCode(6)
	if err != nil {
		return nil, fmt.Errorf("failed to generate join code: %w", err)
	}

	created, err := a.repo.CreateSession(ctx, models.Session{
		ID:       uuid.New(),
		Name:     name,
		JoinCode: joinCode,
		AdminKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", created.ID.String()).
		Str("join_code", created.JoinCode).
		Msg("session created")

	return created, nil
}

// GetSession retrieves a session by ID.
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetSessionByJoinCode retrieves a session by its join code.
func (a *App) GetSessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error) {
	s, err := a.repo.GetSessionByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by join code: %w", err)
	}
	return s, nil
}

// IsPrivileged reports whether the caller holds the session's admin
// key.
func (a *App) IsPrivileged(ctx context.Context, sessionID uuid.UUID, adminKey string) (bool, error) {
	s, err := a.repo.GetSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to get session: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(s.AdminKey), []byte(adminKey)) == 1, nil
}

// join codes skip easily-confused characters (0/O, 1/I).
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newJoinCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(joinCodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
