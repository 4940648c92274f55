package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wheelhouse/go/internal/feed"
	"github.com/mcdev12/wheelhouse/go/internal/models"
	"github.com/mcdev12/wheelhouse/go/internal/reconciler"
	"github.com/nats-io/nats.go"
)

// spinwatch tails a session's spin feed from the terminal and runs the
// same reconciliation loop a wheel UI would, printing state
// transitions instead of animating. Handy for eyeballing late-join and
// reconnect behavior against a live stream.
func main() {
	var (
		sessionIDStr = flag.String("session", "", "session UUID to watch (required)")
		natsURL      = flag.String("nats", "", "NATS URL (default $NATS_URL or nats://127.0.0.1:4222)")
		privileged   = flag.Bool("privileged", false, "hold reveals until Enter instead of auto-idling")
	)
	flag.Parse()

	sessionID, err := uuid.Parse(*sessionIDStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -session: %v\n", err)
		os.Exit(1)
	}

	feedConfig := feed.DefaultNATSConfig()
	if *natsURL != "" {
		feedConfig.URL = *natsURL
	} else if env := os.Getenv("NATS_URL"); env != "" {
		feedConfig.URL = env
	} else {
		feedConfig.URL = nats.DefaultURL
	}

	natsFeed, err := feed.NewNATSFeed(feedConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect feed: %v\n", err)
		os.Exit(1)
	}
	defer natsFeed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := natsFeed.Subscribe(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}

	config := reconciler.DefaultConfig()
	config.Privileged = *privileged

	rec := reconciler.New(config, reconciler.Hooks{
		OnAnimate: func(r models.SpinRecord, remaining time.Duration) {
			fmt.Printf("[%s] ANIMATING spin=%s angle=%.1f remaining=%s of %s\n",
				stamp(), r.SpinID, r.TargetAngle, remaining.Round(time.Millisecond), r.Duration())
		},
		OnReveal: func(w models.Winner) {
			fmt.Printf("[%s] REVEAL    winner=%s (%s)\n", stamp(), w.DisplayName, w.ID)
		},
		OnIdle: func() {
			fmt.Printf("[%s] IDLE\n", stamp())
		},
	})

	if *privileged {
		go func() {
			buf := make([]byte, 1)
			for {
				if _, err := os.Stdin.Read(buf); err != nil {
					return
				}
				if rec.ConfirmReveal() {
					fmt.Printf("[%s] reveal acknowledged\n", stamp())
				}
			}
		}()
	}

	fmt.Printf("watching session %s on %s (privileged=%v)\n", sessionID, feedConfig.URL, *privileged)
	if err := rec.Run(ctx, sub); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "feed loop: %v\n", err)
		os.Exit(1)
	}
}

func stamp() string {
	return time.Now().Format("15:04:05.000")
}
