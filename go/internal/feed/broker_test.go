package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(sessionID uuid.UUID) models.SpinRecord {
	return models.SpinRecord{
		SessionID: sessionID,
		SpinID:    uuid.New(),
		IsActive:  true,
		Winner: &models.Winner{
			ID:          uuid.New(),
			DisplayName: "winner",
		},
		TargetAngle:            1575,
		DurationSeconds:        4,
		PublishedAt:            time.Now(),
		ParticipantCountAtSpin: 4,
	}
}

func receive(t *testing.T, sub *Subscription) models.SpinRecord {
	t.Helper()
	select {
	case rec, ok := <-sub.Records():
		require.True(t, ok, "subscription channel closed unexpectedly")
		return rec
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return models.SpinRecord{}
	}
}

func TestBrokerDeliversToSessionSubscribers(t *testing.T) {
	b := NewBroker()
	sessionID := uuid.New()

	sub, err := b.Subscribe(context.Background(), sessionID)
	require.NoError(t, err)
	defer sub.Cancel()

	rec := testRecord(sessionID)
	b.Publish(rec)

	got := receive(t, sub)
	assert.Equal(t, rec.SpinID, got.SpinID)
	assert.Equal(t, rec.TargetAngle, got.TargetAngle)
}

func TestBrokerIsolatesSessions(t *testing.T) {
	b := NewBroker()
	sessionA := uuid.New()
	sessionB := uuid.New()

	subA, err := b.Subscribe(context.Background(), sessionA)
	require.NoError(t, err)
	defer subA.Cancel()
	subB, err := b.Subscribe(context.Background(), sessionB)
	require.NoError(t, err)
	defer subB.Cancel()

	b.Publish(testRecord(sessionA))

	got := receive(t, subA)
	assert.Equal(t, sessionA, got.SessionID)

	select {
	case rec := <-subB.Records():
		t.Fatalf("session B received session A's record: %v", rec.SpinID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerPreservesPublishOrder(t *testing.T) {
	b := NewBroker()
	sessionID := uuid.New()

	sub, err := b.Subscribe(context.Background(), sessionID)
	require.NoError(t, err)
	defer sub.Cancel()

	published := testRecord(sessionID)
	b.Publish(published)

	retired := published
	retired.IsActive = false
	b.Publish(retired)

	first := receive(t, sub)
	second := receive(t, sub)
	assert.True(t, first.IsActive)
	assert.False(t, second.IsActive)
}

func TestBrokerFanOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	sessionID := uuid.New()

	subs := make([]*Subscription, 3)
	for i := range subs {
		sub, err := b.Subscribe(context.Background(), sessionID)
		require.NoError(t, err)
		defer sub.Cancel()
		subs[i] = sub
	}

	rec := testRecord(sessionID)
	b.Publish(rec)

	for _, sub := range subs {
		got := receive(t, sub)
		assert.Equal(t, rec.SpinID, got.SpinID)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroker()
	sessionID := uuid.New()

	sub, err := b.Subscribe(context.Background(), sessionID)
	require.NoError(t, err)
	sub.Cancel()

	// Publishing after Cancel must not deliver or panic on the closed
	// channel.
	b.Publish(testRecord(sessionID))

	_, ok := <-sub.Records()
	assert.False(t, ok, "channel should be closed after Cancel")
}

func TestCancelIsIdempotent(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()
}

func TestContextCancellationCancelsSubscription(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, uuid.New())
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-sub.Records():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not cancelled after context done")
	}
}

func TestPublishPayloadUnwrapsEnvelope(t *testing.T) {
	b := NewBroker()
	sessionID := uuid.New()

	sub, err := b.Subscribe(context.Background(), sessionID)
	require.NoError(t, err)
	defer sub.Cancel()

	rec := testRecord(sessionID)
	payload, err := json.Marshal(map[string]interface{}{"record": rec})
	require.NoError(t, err)

	b.PublishPayload("SpinPublished", payload)

	got := receive(t, sub)
	assert.Equal(t, rec.SpinID, got.SpinID)
}

func TestPublishPayloadDropsMalformed(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)
	defer sub.Cancel()

	b.PublishPayload("SpinPublished", json.RawMessage(`{not json`))

	select {
	case rec := <-sub.Records():
		t.Fatalf("malformed payload delivered a record: %v", rec.SpinID)
	case <-time.After(50 * time.Millisecond):
	}
}
