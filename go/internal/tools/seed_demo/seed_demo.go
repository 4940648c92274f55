package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/wheelhouse/go/internal/dbconfig"
	"github.com/mcdev12/wheelhouse/go/internal/roster"
	"github.com/mcdev12/wheelhouse/go/internal/session"
)

// Seeds a demo session with a roster, printing the join code and admin
// key so you can drive it from curl or the UI straight away.
func main() {
	var (
		name  = flag.String("name", "Friday Standup Wheel", "session name")
		names = flag.String("participants", "Alice,Bob,Carol,Dave", "comma-separated participant names")
	)
	flag.Parse()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx := context.Background()
	sessionApp := session.NewApp(session.NewRepository(pool))
	rosterApp := roster.NewApp(roster.NewRepository(pool))

	s, err := sessionApp.CreateSession(ctx, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create session: %v\n", err)
		os.Exit(1)
	}

	var joined int
	for _, n := range strings.Split(*names, ",") {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, err := rosterApp.Join(ctx, s.ID, n); err != nil {
			fmt.Fprintf(os.Stderr, "join %q: %v\n", n, err)
			os.Exit(1)
		}
		joined++
	}

	fmt.Printf("session:      %s\n", s.ID)
	fmt.Printf("join code:    %s\n", s.JoinCode)
	fmt.Printf("admin key:    %s\n", s.AdminKey)
	fmt.Printf("participants: %d\n", joined)
}
