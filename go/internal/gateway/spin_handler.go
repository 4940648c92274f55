package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/session"
	"github.com/mcdev12/wheelhouse/go/internal/spin"
	"github.com/rs/zerolog/log"
)

// SpinService drives the wheel. Implemented by the spin coordinator App.
type SpinService interface {
	InitiateSpin(ctx context.Context, req spin.InitiateSpinRequest) (*spin.InitiateSpinResult, error)
	ConfirmWinner(ctx context.Context, req spin.ConfirmWinnerRequest) (*spin.ConfirmWinnerResult, error)
	CancelSpin(ctx context.Context, req spin.CancelSpinRequest) error
	GetSpinRecord(ctx context.Context, sessionID uuid.UUID) (*models.SpinRecord, error)
}

// SessionService creates and resolves sessions.
type SessionService interface {
	CreateSession(ctx context.Context, name string) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error)
}

// RosterService manages session participants.
type RosterService interface {
	Join(ctx context.Context, sessionID uuid.UUID, displayName string) (*models.Participant, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
}

// HistoryService reads confirmed spin outcomes.
type HistoryService interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.HistoryEntry, error)
}

// SpinHandler exposes the spin API over JSON HTTP. The WebSocket feed
// carries state outward; every mutation comes through here.
type SpinHandler struct {
	spins    SpinService
	sessions SessionService
	roster   RosterService
	history  HistoryService
}

// NewSpinHandler creates a new spin API handler
func NewSpinHandler(spins SpinService, sessions SessionService, roster RosterService, history HistoryService) *SpinHandler {
	return &SpinHandler{
		spins:    spins,
		sessions: sessions,
		roster:   roster,
		history:  history,
	}
}

// RegisterRoutes registers the spin API routes with an HTTP mux
func (h *SpinHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("GET /api/sessions/by-code/{code}", h.handleGetSessionByCode)
	mux.HandleFunc("POST /api/sessions/{id}/participants", h.handleJoin)
	mux.HandleFunc("GET /api/sessions/{id}/participants", h.handleListParticipants)
	mux.HandleFunc("POST /api/sessions/{id}/spin", h.handleInitiateSpin)
	mux.HandleFunc("GET /api/sessions/{id}/spin", h.handleGetSpinRecord)
	mux.HandleFunc("POST /api/sessions/{id}/spin/confirm", h.handleConfirmWinner)
	mux.HandleFunc("POST /api/sessions/{id}/spin/cancel", h.handleCancelSpin)
	mux.HandleFunc("GET /api/sessions/{id}/history", h.handleListHistory)
}

type createSessionRequest struct {
	Name string `json:"name"`
}

// createSessionResponse is the only place the admin key ever leaves the
// server; the model hides it from every other serialization.
type createSessionResponse struct {
	Session  *models.Session `json:"session"`
	AdminKey string          `json:"admin_key"`
}

func (h *SpinHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.sessions.CreateSession(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Session: s, AdminKey: s.AdminKey})
}

func (h *SpinHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SpinHandler) handleGetSessionByCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "join code is required")
		return
	}

	s, err := h.sessions.GetSessionByJoinCode(r.Context(), code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type joinRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *SpinHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.roster.Join(r.Context(), sessionID, req.DisplayName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *SpinHandler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	participants, err := h.roster.ListParticipants(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	writeJSON(w, http.StatusOK, participants)
}

type initiateSpinRequest struct {
	AdminKey string     `json:"admin_key"`
	ReSpinOf *uuid.UUID `json:"re_spin_of,omitempty"`
}

func (h *SpinHandler) handleInitiateSpin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req initiateSpinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.spins.InitiateSpin(r.Context(), spin.InitiateSpinRequest{
		SessionID: sessionID,
		AdminKey:  req.AdminKey,
		ReSpinOf:  req.ReSpinOf,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *SpinHandler) handleGetSpinRecord(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.spins.GetSpinRecord(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type confirmWinnerRequest struct {
	AdminKey string    `json:"admin_key"`
	SpinID   uuid.UUID `json:"spin_id"`
}

func (h *SpinHandler) handleConfirmWinner(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req confirmWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.spins.ConfirmWinner(r.Context(), spin.ConfirmWinnerRequest{
		SessionID: sessionID,
		AdminKey:  req.AdminKey,
		SpinID:    req.SpinID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cancelSpinRequest struct {
	AdminKey string    `json:"admin_key"`
	SpinID   uuid.UUID `json:"spin_id"`
	Reason   string    `json:"reason"`
}

func (h *SpinHandler) handleCancelSpin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req cancelSpinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.spins.CancelSpin(r.Context(), spin.CancelSpinRequest{
		SessionID: sessionID,
		AdminKey:  req.AdminKey,
		SpinID:    req.SpinID,
		Reason:    req.Reason,
	}); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SpinHandler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.history.ListBySession(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeServiceError maps coordinator sentinels onto HTTP statuses.
// Anything unmapped is a 500 with a generic message; details stay in
// the server log.
func (h *SpinHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, spin.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "admin key required")
	case errors.Is(err, spin.ErrAlreadySpinning):
		writeError(w, http.StatusConflict, "a spin is already in progress")
	case errors.Is(err, spin.ErrCooldownActive):
		writeError(w, http.StatusTooManyRequests, "cooldown active, try again later")
	case errors.Is(err, spin.ErrEmptyRoster):
		writeError(w, http.StatusUnprocessableEntity, "session has no participants")
	case errors.Is(err, spin.ErrStaleConfirmation):
		writeError(w, http.StatusConflict, "spin record is stale or already settled")
	case errors.Is(err, spin.ErrNoSpinRecord):
		writeError(w, http.StatusNotFound, "no spin record for session")
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		log.Error().Err(err).Msg("spin API request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
