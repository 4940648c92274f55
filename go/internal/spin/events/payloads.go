package events

import (
	"github.com/mcdev12/wheelhouse/go/internal/models"
)

// Event payload types shared between the spin and gateway packages.
//
// Every event carries a full SpinRecord snapshot rather than a delta:
// observers reconcile from snapshots, so delivery only has to be
// at-least-once and ordered per session, never complete.

// EventTypeSpinPublished is emitted when a new spin is initiated.
const EventTypeSpinPublished = "SpinPublished"

// EventTypeWinnerConfirmed is emitted when the privileged actor
// confirms the winner and the record is retired.
const EventTypeWinnerConfirmed = "WinnerConfirmed"

// EventTypeSpinCancelled is emitted when an active record is
// force-retired without a confirmation.
const EventTypeSpinCancelled = "SpinCancelled"

// SpinPublishedPayload is the payload for a SpinPublished event.
type SpinPublishedPayload struct {
	Record models.SpinRecord `json:"record"`
}

// WinnerConfirmedPayload is the payload for a WinnerConfirmed event.
type WinnerConfirmedPayload struct {
	Record         models.SpinRecord `json:"record"`
	HistoryEntryID string            `json:"history_entry_id"`
}

// SpinCancelledPayload is the payload for a SpinCancelled event.
type SpinCancelledPayload struct {
	Record models.SpinRecord `json:"record"`
	Reason string            `json:"reason,omitempty"`
}
