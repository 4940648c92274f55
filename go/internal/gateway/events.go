package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/wheelhouse/go/internal/spin/events"
)

// SpinEvent is the wire format pushed to WebSocket clients. Data
// carries the event-specific payload untouched; clients that only care
// about the record can decode `data.record` for every type.
type SpinEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of spin event
type EventType string

const (
	EventTypeSpinPublished   EventType = "SpinPublished"
	EventTypeWinnerConfirmed EventType = "WinnerConfirmed"
	EventTypeSpinCancelled   EventType = "SpinCancelled"
	// EventTypeSnapshot is gateway-local: the current record pushed to a
	// client right after it connects, before any live event arrives.
	EventTypeSnapshot EventType = "Snapshot"
)

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *SpinEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeSpinPublished, EventTypeSnapshot:
		var payload events.SpinPublishedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeWinnerConfirmed:
		var payload events.WinnerConfirmedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSpinCancelled:
		var payload events.SpinCancelledPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
