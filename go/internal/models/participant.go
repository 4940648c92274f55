package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant represents one roster member eligible to win a spin.
// Uniqueness is by ID only; display names may collide and are
// disambiguated by the join flow, not here.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}
