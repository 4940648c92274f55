package roster

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParticipantRepo struct {
	participants []models.Participant
}

func (f *fakeParticipantRepo) CreateParticipant(ctx context.Context, sessionID uuid.UUID, displayName string) (*models.Participant, error) {
	p := models.Participant{
		ID:          uuid.New(),
		SessionID:   sessionID,
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	}
	f.participants = append(f.participants, p)
	return &p, nil
}

func (f *fakeParticipantRepo) ListParticipantsBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range f.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParticipantRepo) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	for i, p := range f.participants {
		if p.ID == id {
			f.participants = append(f.participants[:i], f.participants[i+1:]...)
			return nil
		}
	}
	return nil
}

func TestJoinTrimsDisplayName(t *testing.T) {
	app := NewApp(&fakeParticipantRepo{})

	p, err := app.Join(context.Background(), uuid.New(), "  Dana  ")
	require.NoError(t, err)
	assert.Equal(t, "Dana", p.DisplayName)
}

func TestJoinRejectsEmptyName(t *testing.T) {
	app := NewApp(&fakeParticipantRepo{})

	_, err := app.Join(context.Background(), uuid.New(), "   ")
	assert.Error(t, err)
}

func TestJoinDisambiguatesCollidingNames(t *testing.T) {
	app := NewApp(&fakeParticipantRepo{})
	sessionID := uuid.New()
	ctx := context.Background()

	first, err := app.Join(ctx, sessionID, "John")
	require.NoError(t, err)
	second, err := app.Join(ctx, sessionID, "John")
	require.NoError(t, err)
	third, err := app.Join(ctx, sessionID, "John")
	require.NoError(t, err)

	assert.Equal(t, "John", first.DisplayName)
	assert.Equal(t, "John (2)", second.DisplayName)
	assert.Equal(t, "John (3)", third.DisplayName)
}

func TestJoinSameNameDifferentSessions(t *testing.T) {
	app := NewApp(&fakeParticipantRepo{})
	ctx := context.Background()

	a, err := app.Join(ctx, uuid.New(), "John")
	require.NoError(t, err)
	b, err := app.Join(ctx, uuid.New(), "John")
	require.NoError(t, err)

	// Names only collide within a session.
	assert.Equal(t, "John", a.DisplayName)
	assert.Equal(t, "John", b.DisplayName)
}

func TestRemoveParticipantIdempotent(t *testing.T) {
	repo := &fakeParticipantRepo{}
	app := NewApp(repo)
	sessionID := uuid.New()
	ctx := context.Background()

	p, err := app.Join(ctx, sessionID, "Dana")
	require.NoError(t, err)

	require.NoError(t, app.RemoveParticipant(ctx, p.ID))
	require.NoError(t, app.RemoveParticipant(ctx, p.ID))

	remaining, err := app.ListParticipants(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
