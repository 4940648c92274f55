package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one wheel session. The admin key is issued at
// creation and is what makes a caller privileged for spin operations.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"join_code"`
	AdminKey  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
