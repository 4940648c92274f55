package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/spin"
	"github.com/mcdev12/wheelhouse/go/internal/spin/events"
	"github.com/rs/zerolog/log"
)

// SnapshotProvider reads the session's current spin record for the
// post-connect snapshot push.
type SnapshotProvider interface {
	GetSpinRecord(ctx context.Context, sessionID uuid.UUID) (*models.SpinRecord, error)
}

// WebSocketHandler handles WebSocket upgrade requests for session connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	snapshots         SnapshotProvider
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, snapshots SnapshotProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		snapshots:         snapshots,
	}
}

// HandleSessionConnection handles WebSocket connections for a session.
// Right after the upgrade the client gets a snapshot of the current
// spin record, so a late joiner lands mid-animation instead of waiting
// for the next live event.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := r.URL.Query().Get("session_id")
	if sessionIDStr == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	// Client ID is advisory; anonymous viewers are fine.
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "anonymous"
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, clientID, sessionID)
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("client_id", clientID).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	h.pushSnapshot(r.Context(), conn, sessionID)
}

// pushSnapshot sends the current record to a freshly connected client.
// No record yet is normal for a new session; anything else is logged
// and skipped so a store hiccup never kills the connection.
func (h *WebSocketHandler) pushSnapshot(ctx context.Context, conn *Connection, sessionID uuid.UUID) {
	rec, err := h.snapshots.GetSpinRecord(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, spin.ErrNoSpinRecord) {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to read snapshot")
		}
		return
	}

	data, err := json.Marshal(events.SpinPublishedPayload{Record: *rec})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot payload")
		return
	}

	h.connectionManager.SendToConnection(conn, &SpinEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      EventTypeSnapshot,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	w.Write([]byte("{"))
	w.Write([]byte("\"total_connections\":" + strconv.Itoa(stats["total_connections"].(int)) + ","))
	w.Write([]byte("\"active_sessions\":" + strconv.Itoa(stats["active_sessions"].(int))))
	w.Write([]byte("}"))
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
