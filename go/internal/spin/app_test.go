package spin

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/selector"
	"github.com/mcdev12/wheelhouse/go/internal/spin/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "admin-key"

type fakeAuth struct {
	key string
}

func (f *fakeAuth) IsPrivileged(ctx context.Context, sessionID uuid.UUID, adminKey string) (bool, error) {
	return adminKey == f.key, nil
}

type fakeRoster struct {
	mu           sync.Mutex
	participants []models.Participant
	removeErr    error
	removals     int
}

func (f *fakeRoster) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Participant, len(f.participants))
	copy(out, f.participants)
	return out, nil
}

func (f *fakeRoster) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removals++
	for i, p := range f.participants {
		if p.ID == id {
			f.participants = append(f.participants[:i], f.participants[i+1:]...)
			break
		}
	}
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries map[uuid.UUID]uuid.UUID // spinID -> entryID
	err     error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{entries: make(map[uuid.UUID]uuid.UUID)}
}

func (f *fakeHistory) AppendEntry(ctx context.Context, entry models.HistoryEntry) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if id, ok := f.entries[entry.SpinID]; ok {
		return id, nil
	}
	f.entries[entry.SpinID] = entry.ID
	return entry.ID, nil
}

type capturedEvent struct {
	eventType string
	payload   json.RawMessage
}

type eventLog struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (l *eventLog) record(eventType string, payload json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, capturedEvent{eventType: eventType, payload: payload})
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.eventType
	}
	return out
}

type testHarness struct {
	app     *App
	repo    *MemoryRepository
	roster  *fakeRoster
	history *fakeHistory
	clock   *clockwork.FakeClock
	events  *eventLog
}

func newHarness(t *testing.T, participantCount int) *testHarness {
	t.Helper()

	participants := make([]models.Participant, participantCount)
	for i := range participants {
		participants[i] = models.Participant{
			ID:          uuid.New(),
			DisplayName: "participant",
		}
	}

	log := &eventLog{}
	repo := NewMemoryRepository(log.record)
	roster := &fakeRoster{participants: participants}
	history := newFakeHistory()
	clock := clockwork.NewFakeClock()

	app := NewApp(repo, roster, history, &fakeAuth{key: testAdminKey}, selector.New(), DefaultPolicy()).
		WithClock(clock)

	return &testHarness{
		app:     app,
		repo:    repo,
		roster:  roster,
		history: history,
		clock:   clock,
		events:  log,
	}
}

func TestInitiateSpinPublishesActiveRecord(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()

	result, err := h.app.InitiateSpin(context.Background(), InitiateSpinRequest{
		SessionID: sessionID,
		AdminKey:  testAdminKey,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEqual(t, uuid.Nil, result.SpinID)
	assert.Greater(t, result.DurationSeconds, 0.0)
	assert.GreaterOrEqual(t, result.TargetAngle, 3*360.0)

	rec, err := h.app.GetSpinRecord(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, rec.IsActive)
	assert.Equal(t, result.SpinID, rec.SpinID)
	assert.Equal(t, 4, rec.ParticipantCountAtSpin)
	require.NotNil(t, rec.Winner)
	assert.Equal(t, result.WinnerID, rec.Winner.ID)

	assert.Equal(t, []string{events.EventTypeSpinPublished}, h.events.types())
}

func TestInitiateSpinUnauthorized(t *testing.T) {
	h := newHarness(t, 4)

	_, err := h.app.InitiateSpin(context.Background(), InitiateSpinRequest{
		SessionID: uuid.New(),
		AdminKey:  "wrong-key",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, h.events.types())
}

func TestInitiateSpinEmptyRoster(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.app.InitiateSpin(context.Background(), InitiateSpinRequest{
		SessionID: uuid.New(),
		AdminKey:  testAdminKey,
	})
	assert.ErrorIs(t, err, ErrEmptyRoster)
}

func TestInitiateSpinRejectedWhileActive(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()

	_, err := h.app.InitiateSpin(context.Background(), InitiateSpinRequest{
		SessionID: sessionID,
		AdminKey:  testAdminKey,
	})
	require.NoError(t, err)

	_, err = h.app.InitiateSpin(context.Background(), InitiateSpinRequest{
		SessionID: sessionID,
		AdminKey:  testAdminKey,
	})
	assert.ErrorIs(t, err, ErrAlreadySpinning)
	assert.Len(t, h.events.types(), 1)
}

func TestInitiateSpinCooldown(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	first, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	_, err = h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    first.SpinID,
		AdminKey:  testAdminKey,
	})
	require.NoError(t, err)

	// 10s after publish: record is retired but cooldown still holds.
	h.clock.Advance(10 * time.Second)
	_, err = h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	assert.ErrorIs(t, err, ErrCooldownActive)

	// 31s after publish: cooldown has elapsed.
	h.clock.Advance(21 * time.Second)
	_, err = h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	assert.NoError(t, err)
}

func TestInitiateSpinAfterActiveTTLExpiry(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	first, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	// Abandoned reveal: nobody confirms. After the TTL the stale active
	// record no longer blocks new spins.
	h.clock.Advance(11 * time.Minute)
	second, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)
	assert.NotEqual(t, first.SpinID, second.SpinID)
}

func TestConcurrentInitiatesExactlyOneWins(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.app.InitiateSpin(context.Background(), InitiateSpinRequest{
				SessionID: sessionID,
				AdminKey:  testAdminKey,
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrAlreadySpinning)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, []string{events.EventTypeSpinPublished}, h.events.types())
}

func TestConfirmWinnerSettlesRecord(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	result, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	confirm, err := h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    result.SpinID,
		AdminKey:  testAdminKey,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, confirm.HistoryEntryID)

	// Winner left the roster, exactly once.
	assert.Len(t, h.roster.participants, 3)
	for _, p := range h.roster.participants {
		assert.NotEqual(t, result.WinnerID, p.ID)
	}

	rec, err := h.app.GetSpinRecord(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, rec.IsActive)

	assert.Equal(t, []string{events.EventTypeSpinPublished, events.EventTypeWinnerConfirmed}, h.events.types())
}

func TestConfirmWinnerStaleSpinID(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	_, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	_, err = h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    uuid.New(), // not the active spin
		AdminKey:  testAdminKey,
	})
	assert.ErrorIs(t, err, ErrStaleConfirmation)
}

func TestConfirmWinnerNoRecord(t *testing.T) {
	h := newHarness(t, 4)

	_, err := h.app.ConfirmWinner(context.Background(), ConfirmWinnerRequest{
		SessionID: uuid.New(),
		SpinID:    uuid.New(),
		AdminKey:  testAdminKey,
	})
	assert.ErrorIs(t, err, ErrStaleConfirmation)
}

func TestConfirmWinnerRetryAfterRosterFailure(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	result, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	// First attempt: history lands, roster removal fails. The record
	// must stay active so the confirmation can be retried.
	h.roster.removeErr = assert.AnError
	_, err = h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    result.SpinID,
		AdminKey:  testAdminKey,
	})
	require.ErrorIs(t, err, ErrRosterRemovalFailed)

	rec, err := h.app.GetSpinRecord(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, rec.IsActive, "record must not retire after a partial failure")

	// Retry succeeds end to end with a single history entry.
	h.roster.removeErr = nil
	confirm, err := h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    result.SpinID,
		AdminKey:  testAdminKey,
	})
	require.NoError(t, err)
	assert.Len(t, h.history.entries, 1)
	assert.Equal(t, h.history.entries[result.SpinID], confirm.HistoryEntryID)

	rec, err = h.app.GetSpinRecord(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, rec.IsActive)
}

func TestConfirmWinnerHistoryFailureBlocksRemoval(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	result, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	h.history.err = assert.AnError
	_, err = h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    result.SpinID,
		AdminKey:  testAdminKey,
	})
	require.ErrorIs(t, err, ErrHistoryWriteFailed)

	// History comes before roster removal: nothing was removed.
	assert.Len(t, h.roster.participants, 4)
	assert.Equal(t, 0, h.roster.removals)
}

func TestCancelSpinRetiresWithoutSettling(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	result, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)

	err = h.app.CancelSpin(ctx, CancelSpinRequest{
		SessionID: sessionID,
		SpinID:    result.SpinID,
		AdminKey:  testAdminKey,
		Reason:    "winner left the call",
	})
	require.NoError(t, err)

	rec, err := h.app.GetSpinRecord(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, rec.IsActive)

	// No history entry, no roster change.
	assert.Empty(t, h.history.entries)
	assert.Len(t, h.roster.participants, 4)
	assert.Equal(t, []string{events.EventTypeSpinPublished, events.EventTypeSpinCancelled}, h.events.types())
}

func TestGetSpinRecordMissing(t *testing.T) {
	h := newHarness(t, 1)

	_, err := h.app.GetSpinRecord(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoSpinRecord)
}

func TestReSpinLinksPrecedingEntry(t *testing.T) {
	h := newHarness(t, 4)
	sessionID := uuid.New()
	ctx := context.Background()

	first, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{SessionID: sessionID, AdminKey: testAdminKey})
	require.NoError(t, err)
	confirm, err := h.app.ConfirmWinner(ctx, ConfirmWinnerRequest{
		SessionID: sessionID,
		SpinID:    first.SpinID,
		AdminKey:  testAdminKey,
	})
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	second, err := h.app.InitiateSpin(ctx, InitiateSpinRequest{
		SessionID: sessionID,
		AdminKey:  testAdminKey,
		ReSpinOf:  &confirm.HistoryEntryID,
	})
	require.NoError(t, err)

	rec, err := h.app.GetSpinRecord(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, second.SpinID, rec.SpinID)
	require.NotNil(t, rec.ReSpinOf)
	assert.Equal(t, confirm.HistoryEntryID, *rec.ReSpinOf)
}
