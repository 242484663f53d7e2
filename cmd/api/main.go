// Package main is the entry point for the itinerary API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata" // CALENDAR_TIMEZONE must resolve in minimal containers

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/itinerary/internal/app"
	"github.com/pkordes/itinerary/internal/config"
	"github.com/pkordes/itinerary/internal/handler"
	"github.com/pkordes/itinerary/internal/middleware"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.AutoMigrate {
		if err := app.MigrateUp(ctx, pool, logger); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	// --- Services ---------------------------------------------------------
	a, err := app.New(cfg, pool, logger)
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	// --- Mailbox poller ---------------------------------------------------
	// The trigger is buffered by one: a pending scan absorbs every webhook
	// notification that arrives before it starts.
	var (
		trigger chan struct{}
		workers sync.WaitGroup
	)
	if cfg.GmailEnabled() {
		scanner, err := a.MailScanner(ctx, 0)
		if err != nil {
			slog.Error("failed to build mail scanner", "error", err)
			os.Exit(1)
		}
		trigger = make(chan struct{}, 1)
		workers.Add(1)
		go func() {
			defer workers.Done()
			scanner.Run(ctx, cfg.GmailPollInterval, trigger)
		}()
		slog.Info("mailbox polling enabled", "interval", cfg.GmailPollInterval.String())
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	r.Mount("/", handler.NewServer(a.HandlerDeps(trigger)).Routes())

	// --- HTTP Server ------------------------------------------------------
	// Extraction can take most of a minute, so the write timeout leaves room
	// for it on top of the request itself.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ExtractorTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	workers.Wait()
	slog.Info("server stopped")
}
