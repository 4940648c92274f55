package spin

import (
	"time"

	"github.com/google/uuid"
)

// Policy holds the coordinator's pacing rules. Both knobs are
// measured from the previous record's PublishedAt.
type Policy struct {
	// Cooldown is the minimum interval between consecutive spins.
	// Zero disables the guard.
	Cooldown time.Duration
	// ActiveTTL bounds how long an unconfirmed record can block new
	// spins. An active record older than this is treated as retired,
	// so an abandoned reveal never wedges the session permanently.
	ActiveTTL time.Duration
}

// DefaultPolicy returns the default pacing policy.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:  30 * time.Second,
		ActiveTTL: 10 * time.Minute,
	}
}

// InitiateSpinRequest is the input for InitiateSpin.
type InitiateSpinRequest struct {
	SessionID uuid.UUID  `json:"session_id"`
	AdminKey  string     `json:"admin_key"`
	ReSpinOf  *uuid.UUID `json:"respin_of,omitempty"`
}

// InitiateSpinResult echoes the published record back to the caller
// for immediate optimistic feedback. The feed delivery is the
// authoritative copy; this value must not be used for synchronization.
type InitiateSpinResult struct {
	SpinID            uuid.UUID `json:"spin_id"`
	WinnerID          uuid.UUID `json:"winner_id"`
	WinnerDisplayName string    `json:"winner_display_name"`
	TargetAngle       float64   `json:"target_angle"`
	DurationSeconds   float64   `json:"duration_seconds"`
	PublishedAt       time.Time `json:"published_at"`
}

// ConfirmWinnerRequest is the input for ConfirmWinner.
type ConfirmWinnerRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	SpinID    uuid.UUID `json:"spin_id"`
	AdminKey  string    `json:"admin_key"`
}

// ConfirmWinnerResult reports the appended history entry.
type ConfirmWinnerResult struct {
	HistoryEntryID uuid.UUID `json:"history_entry_id"`
}

// CancelSpinRequest is the input for CancelSpin, the administrative
// escape hatch that retires a record without confirming a winner.
type CancelSpinRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	SpinID    uuid.UUID `json:"spin_id"`
	AdminKey  string    `json:"admin_key"`
	Reason    string    `json:"reason,omitempty"`
}
