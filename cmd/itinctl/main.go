// Command itinctl runs maintenance tasks against the itinerary store:
// schema migrations, one-off document ingestion, and mailbox scans.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pkordes/itinerary/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "itinctl",
		Short:        "manage the itinerary store",
		Long:         `itinctl applies schema migrations, ingests booking documents from files, and scans the configured mailbox.`,
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(scanGmailCmd())
	return root
}

// env is what every database-backed command needs.
type env struct {
	cfg  config.Config
	pool *pgxpool.Pool
	log  *slog.Logger
}

// connect loads configuration and opens the database. Logs go to stderr so
// stdout stays clean for command output.
func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{cfg: cfg, pool: pool, log: log}, nil
}

func (e *env) Close() { e.pool.Close() }
