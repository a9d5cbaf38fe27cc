// The quill-sweeper binary deletes unverified accounts whose verification
// tokens have expired. It runs the sweep on a cron schedule, or once with
// --run-once for manual cleanup.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/quillhq/quill/pkg/storage/postgres"
)

var (
	dbURL    = flag.String("db-url", getEnv("QUILL_POSTGRES_URL", "postgres://localhost/quill?sslmode=disable"), "PostgreSQL connection URL")
	schedule = flag.String("schedule", "0 1 * * *", "Cron schedule for the cleanup sweep (default: 01:00 UTC)")
	runOnce  = flag.Bool("run-once", false, "Run the sweep once and exit")
	timeout  = flag.Duration("timeout", 5*time.Minute, "Per-sweep timeout")
)

func main() {
	flag.Parse()

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	users := postgres.NewUserStore(db)

	if *runOnce {
		if err := sweep(users); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if err := sweep(users); err != nil {
			log.Printf("Sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule cleanup sweep: %v", err)
	}

	c.Start()
	log.Println("Quill account sweeper started")
	log.Printf("Cleanup schedule: %s", *schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Wait for any in-flight sweep to finish.
	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Sweeper stopped")
}

func sweep(users *postgres.UserStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Println("Sweeping expired unverified accounts")
	deleted, err := users.DeleteExpiredUnverified(ctx)
	if err != nil {
		return err
	}
	log.Printf("Removed %d expired unverified accounts", deleted)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
