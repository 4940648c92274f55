package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wheelhouse/go/internal/feed"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type animateCall struct {
	rec       models.SpinRecord
	remaining time.Duration
}

type hookRecorder struct {
	animations chan animateCall
	reveals    chan models.Winner
	idles      chan struct{}
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{
		animations: make(chan animateCall, 8),
		reveals:    make(chan models.Winner, 8),
		idles:      make(chan struct{}, 8),
	}
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		OnAnimate: func(rec models.SpinRecord, remaining time.Duration) {
			h.animations <- animateCall{rec: rec, remaining: remaining}
		},
		OnReveal: func(winner models.Winner) {
			h.reveals <- winner
		},
		OnIdle: func() {
			h.idles <- struct{}{}
		},
	}
}

func awaitAnimate(t *testing.T, h *hookRecorder) animateCall {
	t.Helper()
	select {
	case call := <-h.animations:
		return call
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnAnimate")
		return animateCall{}
	}
}

func awaitReveal(t *testing.T, h *hookRecorder) models.Winner {
	t.Helper()
	select {
	case w := <-h.reveals:
		return w
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnReveal")
		return models.Winner{}
	}
}

func awaitIdle(t *testing.T, h *hookRecorder) {
	t.Helper()
	select {
	case <-h.idles:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnIdle")
	}
}

func assertNoHook(t *testing.T, h *hookRecorder) {
	t.Helper()
	select {
	case <-h.animations:
		t.Fatal("unexpected OnAnimate")
	case <-h.reveals:
		t.Fatal("unexpected OnReveal")
	case <-h.idles:
		t.Fatal("unexpected OnIdle")
	case <-time.After(50 * time.Millisecond):
	}
}

func activeRecord(publishedAt time.Time, durationSec float64) models.SpinRecord {
	return models.SpinRecord{
		SessionID: uuid.New(),
		SpinID:    uuid.New(),
		IsActive:  true,
		Winner: &models.Winner{
			ID:          uuid.New(),
			DisplayName: "winner",
		},
		TargetAngle:            1575,
		DurationSeconds:        durationSec,
		PublishedAt:            publishedAt,
		ParticipantCountAtSpin: 4,
	}
}

func newTestReconciler(config Config, h *hookRecorder) (*Reconciler, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	r := New(config, h.hooks()).WithClock(clock)
	return r, clock
}

func TestFreshSpinRunsFullAnimation(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	// Establish a baseline so the next record counts as a fresh spin.
	baseline := activeRecord(clock.Now(), 4)
	baseline.IsActive = false
	r.Apply(baseline)

	rec := activeRecord(clock.Now(), 4)
	r.Apply(rec)

	call := awaitAnimate(t, h)
	assert.Equal(t, rec.SpinID, call.rec.SpinID)
	assert.Equal(t, 4*time.Second, call.remaining)
	assert.Equal(t, StateAnimating, r.State())
}

func TestLateJoinerCatchesUpMidSpin(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	// First snapshot ever: published 2s ago with a 4s duration, so the
	// animation resumes with ~2s to go.
	rec := activeRecord(clock.Now().Add(-2*time.Second), 4)
	r.Apply(rec)

	call := awaitAnimate(t, h)
	assert.Equal(t, 2*time.Second, call.remaining)
	assert.Equal(t, StateAnimating, r.State())
}

func TestLateJoinerAfterSpinFinishedSeesReveal(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	// Published 10s ago, 4s duration: the wheel already stopped. No
	// animation; jump straight to the resting reveal.
	rec := activeRecord(clock.Now().Add(-10*time.Second), 4)
	r.Apply(rec)

	winner := awaitReveal(t, h)
	assert.Equal(t, rec.Winner.ID, winner.ID)
	assert.Equal(t, StateRevealing, r.State())
	assertNoHook(t, h)
}

func TestDuplicateSnapshotTriggersOneCycle(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	rec := activeRecord(clock.Now(), 4)
	r.Apply(rec)
	awaitAnimate(t, h)

	// Retransmission of the same spinId must not restart the wheel.
	r.Apply(rec)
	assertNoHook(t, h)
	assert.Equal(t, StateAnimating, r.State())
}

func TestStaleSnapshotIgnored(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	baseline := activeRecord(clock.Now(), 4)
	baseline.IsActive = false
	r.Apply(baseline)

	// New spinId but a publish time far outside the freshness window:
	// replay of ancient state, not a new spin.
	stale := activeRecord(clock.Now().Add(-60*time.Second), 4)
	r.Apply(stale)

	assertNoHook(t, h)
	assert.Equal(t, StateIdle, r.State())
}

func TestAnimationRevealIdleCycle(t *testing.T) {
	h := newHookRecorder()
	config := DefaultConfig()
	r, clock := newTestReconciler(config, h)

	rec := activeRecord(clock.Now(), 4)
	r.Apply(rec)
	awaitAnimate(t, h)

	// The reveal fires after the remaining duration plus margin.
	clock.Advance(4*time.Second + config.RevealMargin)
	winner := awaitReveal(t, h)
	assert.Equal(t, rec.Winner.ID, winner.ID)
	assert.Equal(t, StateRevealing, r.State())

	// Non-privileged observers return to idle on their own.
	clock.Advance(config.RevealDisplay)
	awaitIdle(t, h)
	assert.Equal(t, StateIdle, r.State())
}

func TestPrivilegedObserverHoldsReveal(t *testing.T) {
	h := newHookRecorder()
	config := DefaultConfig()
	config.Privileged = true
	r, clock := newTestReconciler(config, h)

	rec := activeRecord(clock.Now(), 4)
	r.Apply(rec)
	awaitAnimate(t, h)

	clock.Advance(4*time.Second + config.RevealMargin)
	awaitReveal(t, h)

	// No auto-idle, however long the admin stares at the winner.
	clock.Advance(time.Minute)
	assertNoHook(t, h)
	assert.Equal(t, StateRevealing, r.State())

	require.True(t, r.ConfirmReveal())
	awaitIdle(t, h)
	assert.Equal(t, StateIdle, r.State())

	// Nothing left to confirm.
	assert.False(t, r.ConfirmReveal())
}

func TestRetiredSnapshotForcesIdle(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	rec := activeRecord(clock.Now(), 4)
	r.Apply(rec)
	awaitAnimate(t, h)

	// Another observer confirmed (or cancelled): the same spin comes
	// back retired and the wheel returns to rest mid-animation.
	retired := rec
	retired.IsActive = false
	r.Apply(retired)

	awaitIdle(t, h)
	assert.Equal(t, StateIdle, r.State())

	// The cancelled reveal timer must not fire later.
	clock.Advance(10 * time.Second)
	assertNoHook(t, h)
}

func TestMalformedSnapshotDropped(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	rec := activeRecord(clock.Now(), 4)
	rec.Winner = nil
	r.Apply(rec)

	assertNoHook(t, h)
	assert.Equal(t, StateIdle, r.State())
	assert.Nil(t, r.Current())
}

func TestCloseCancelsScheduledTimers(t *testing.T) {
	h := newHookRecorder()
	r, clock := newTestReconciler(DefaultConfig(), h)

	r.Apply(activeRecord(clock.Now(), 4))
	awaitAnimate(t, h)

	r.Close()
	clock.Advance(time.Minute)
	assertNoHook(t, h)
}

func TestRunConsumesFeedUntilCancelled(t *testing.T) {
	h := newHookRecorder()
	clock := clockwork.NewFakeClock()
	r := New(DefaultConfig(), h.hooks()).WithClock(clock)

	broker := feed.NewBroker()
	sessionID := uuid.New()
	sub, err := broker.Subscribe(context.Background(), sessionID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), sub)
	}()

	rec := activeRecord(clock.Now(), 4)
	rec.SessionID = sessionID
	broker.Publish(rec)

	call := awaitAnimate(t, h)
	assert.Equal(t, rec.SpinID, call.rec.SpinID)

	sub.Cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after subscription cancel")
	}
}
