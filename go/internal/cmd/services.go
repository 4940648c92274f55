package main

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wheelhouse/go/internal/feed"
	"github.com/mcdev12/wheelhouse/go/internal/gateway"
	"github.com/mcdev12/wheelhouse/go/internal/history"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/roster"
	"github.com/mcdev12/wheelhouse/go/internal/selector"
	"github.com/mcdev12/wheelhouse/go/internal/session"
	"github.com/mcdev12/wheelhouse/go/internal/spin"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Sessions *session.App
	Roster   *roster.App
	History  *history.Repository
	Spin     *spin.App
	Gateway  *gateway.Service

	// Broker fans out events in-process when the feed driver is
	// "memory"; nil under NATS, where JetStream does the fanout.
	Broker *feed.Broker
}

func setupServices(pool *pgxpool.Pool, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Gateway layer

	sessionApp := session.NewApp(session.NewRepository(pool))
	rosterApp := roster.NewApp(roster.NewRepository(pool))
	historyRepo := history.NewRepository(pool)

	services := &Services{
		Sessions: sessionApp,
		Roster:   rosterApp,
		History:  historyRepo,
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = getEnv("NATS_URL", gatewayConfig.JetStreamConfig.URL)

	var spinRepo spin.SpinRepository
	switch config.Feed.Driver {
	case "", "nats":
		// Durable path: spin writes land in Postgres with an outbox row;
		// the relay process pushes them to JetStream and the gateway's
		// consumer fans them out.
		spinRepo = spin.NewRepository(pool)
	case "memory":
		// Single-process path: the memory repository's publish hook feeds
		// the in-process broker and the gateway directly.
		gatewayConfig.UseJetStream = false
		broker := feed.NewBroker()
		services.Broker = broker
		memRepo := spin.NewMemoryRepository(func(eventType string, payload json.RawMessage) {
			broker.PublishPayload(eventType, payload)
			if services.Gateway == nil {
				return
			}
			var env struct {
				Record models.SpinRecord `json:"record"`
			}
			if err := json.Unmarshal(payload, &env); err != nil {
				log.Error().Err(err).Msg("failed to decode spin payload for gateway")
				return
			}
			services.Gateway.BroadcastOutboxEvent(env.Record.SessionID, eventType, payload)
		})
		spinRepo = memRepo
	default:
		return nil, fmt.Errorf("unknown feed driver %q", config.Feed.Driver)
	}

	spinApp := spin.NewApp(spinRepo, rosterApp, historyRepo, sessionApp, selector.New(), config.spinPolicy())
	services.Spin = spinApp

	spinGateway, err := gateway.NewService(gatewayConfig, spinApp, sessionApp, rosterApp, historyRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to create spin gateway: %w", err)
	}
	services.Gateway = spinGateway

	return services, nil
}
