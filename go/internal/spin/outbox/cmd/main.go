package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/mcdev12/wheelhouse/go/internal/dbconfig"
	"github.com/mcdev12/wheelhouse/go/internal/spin/outbox"
	"github.com/nats-io/nats.go"
)

// Relay process: drains the spin outbox table and publishes events to
// JetStream. Runs separately from the API server so a bus outage never
// blocks spin writes.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	database, err := sql.Open("postgres", dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	defer database.Close()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	publisher, err := outbox.NewNATSPublisher(nc, "SPIN_RECORDS", "spin.records", logger)
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := outbox.NewWorker(database, publisher, outbox.DefaultConfig(), logger)
	if err := worker.Start(ctx); err != nil {
		log.Fatalf("Failed to start outbox worker: %v", err)
	}

	fmt.Println("spin outbox relay running")
	<-ctx.Done()

	if err := worker.Stop(); err != nil {
		log.Printf("Failed to stop outbox worker: %v", err)
	}
}
