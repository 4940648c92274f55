package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service is the spin gateway: WebSocket fanout of spin record events
// plus the JSON HTTP API that drives them.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	spinHandler       *SpinHandler

	// nil when running on the in-memory bus; events then arrive through
	// BroadcastOutboxEvent instead of JetStream.
	eventConsumer *EventConsumer
}

// Config holds configuration for the spin gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
	UseJetStream     bool
}

// DefaultConfig returns default configuration for the spin gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
		UseJetStream:     true,
	}
}

// NewService creates a new spin gateway service. The spin service
// doubles as the snapshot provider for freshly connected clients.
func NewService(config Config, spins SpinService, sessions SessionService, roster RosterService, history HistoryService) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	wsHandler := NewWebSocketHandler(connectionManager, spins)
	spinHandler := NewSpinHandler(spins, sessions, roster, history)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		spinHandler:       spinHandler,
	}

	if config.UseJetStream {
		eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = eventConsumer
	}

	return s, nil
}

// Start begins the gateway service
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("jetstream", s.eventConsumer != nil).Msg("starting spin gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("spin gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}

	log.Info().Msg("spin gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and spin API HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.spinHandler.RegisterRoutes(mux)
	log.Info().Msg("spin gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "spin_gateway"
	stats["status"] = "running"
	return stats
}

// BroadcastOutboxEvent feeds the gateway directly, bypassing
// JetStream. The in-memory wiring hangs this off the memory
// repository's publish hook so single-process deployments still fan
// out over WebSocket.
func (s *Service) BroadcastOutboxEvent(sessionID uuid.UUID, eventType string, payload json.RawMessage) {
	var wsEventType EventType
	switch eventType {
	case "SpinPublished":
		wsEventType = EventTypeSpinPublished
	case "WinnerConfirmed":
		wsEventType = EventTypeWinnerConfirmed
	case "SpinCancelled":
		wsEventType = EventTypeSpinCancelled
	default:
		log.Warn().Str("event_type", eventType).Msg("dropping unknown outbox event")
		return
	}

	s.connectionManager.BroadcastToSession(sessionID, &SpinEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      wsEventType,
		Timestamp: time.Now(),
		Data:      payload,
	})
}
