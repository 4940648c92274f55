package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ParticipantRepository defines what the app layer needs from the
// participant store.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, sessionID uuid.UUID, displayName string) (*models.Participant, error)
	ListParticipantsBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	RemoveParticipant(ctx context.Context, id uuid.UUID) error
}

// App handles roster business logic. The spin coordinator consumes it
// as its roster provider; ordering is always join time ascending.
type App struct {
	repo ParticipantRepository
}

// NewApp creates a new roster App.
func NewApp(repo ParticipantRepository) *App {
	return &App{repo: repo}
}

// Join adds a participant to a session. Display names are opaque to
// the spin core, but colliding names get a numeric suffix here so two
// "John"s stay tellable apart on the wheel.
func (a *App) Join(ctx context.Context, sessionID uuid.UUID, displayName string) (*models.Participant, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("display name is required")
	}

	existing, err := a.repo.ListParticipantsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	taken := make(map[string]bool, len(existing))
	for _, p := range existing {
		taken[p.DisplayName] = true
	}
	name = disambiguate(name, taken)

	participant, err := a.repo.CreateParticipant(ctx, sessionID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("participant_id", participant.ID.String()).
		Str("display_name", participant.DisplayName).
		Msg("participant joined")

	return participant, nil
}

// ListParticipants returns the session's roster ordered by join time.
func (a *App) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	participants, err := a.repo.ListParticipantsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// RemoveParticipant deletes a participant. Idempotent: removing an
// already-removed participant succeeds, which confirmation retries
// rely on.
func (a *App) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.RemoveParticipant(ctx, id); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

// disambiguate appends " (n)" until the name is unused.
func disambiguate(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}
