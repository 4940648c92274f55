package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is the immutable, append-only result of a confirmed
// spin. Entries are never mutated or deleted; a re-spin appends a new
// entry referencing the one it supersedes.
type HistoryEntry struct {
	ID                uuid.UUID  `json:"id"`
	SessionID         uuid.UUID  `json:"session_id"`
	SpinID            uuid.UUID  `json:"spin_id"`
	WinnerID          uuid.UUID  `json:"winner_id"`
	WinnerDisplayName string     `json:"winner_display_name"`
	SpunAt            time.Time  `json:"spun_at"`
	IsReSpin          bool       `json:"is_respin"`
	PrecedingEntryID  *uuid.UUID `json:"preceding_entry_id,omitempty"`
}
