package models

import (
	"time"

	"github.com/google/uuid"
)

// Winner identifies the participant a spin landed on.
type Winner struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// SpinRecord is the ephemeral synchronization unit for one session.
// There is exactly one slot per session (keyed singleton, not an
// append log); the coordinator is its only writer.
type SpinRecord struct {
	SessionID uuid.UUID `json:"session_id"`
	// SpinID is freshly generated on every initiate and is the sole
	// deduplication key for observers.
	SpinID   uuid.UUID `json:"spin_id"`
	IsActive bool      `json:"is_active"`
	Winner   *Winner   `json:"winner,omitempty"`
	// TargetAngle is the total clockwise rotation in degrees, full
	// turns included.
	TargetAngle     float64 `json:"target_angle"`
	DurationSeconds float64 `json:"duration_seconds"`
	// PublishedAt is server-assigned; all staleness and remaining-time
	// math derives from it, never from client clocks.
	PublishedAt            time.Time  `json:"published_at"`
	ParticipantCountAtSpin int        `json:"participant_count_at_spin"`
	ReSpinOf               *uuid.UUID `json:"respin_of,omitempty"`
}

// Duration returns the animation length as a time.Duration.
func (r *SpinRecord) Duration() time.Duration {
	return time.Duration(r.DurationSeconds * float64(time.Second))
}

// Elapsed returns how long ago the record was published relative to now.
func (r *SpinRecord) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.PublishedAt)
}
