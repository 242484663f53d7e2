// Package app assembles the itinerary services from configuration. Both the
// API server and itinctl build their dependency graph here so the two
// entry points cannot drift apart.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pkordes/itinerary/internal/calendar"
	"github.com/pkordes/itinerary/internal/config"
	"github.com/pkordes/itinerary/internal/extract"
	"github.com/pkordes/itinerary/internal/handler"
	"github.com/pkordes/itinerary/internal/mailsource"
	"github.com/pkordes/itinerary/internal/metrics"
	"github.com/pkordes/itinerary/internal/ratelimit"
	"github.com/pkordes/itinerary/internal/repo"
	"github.com/pkordes/itinerary/internal/service"
	"github.com/pkordes/itinerary/migrations"
	"github.com/pkordes/itinerary/spec"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "itinerary"

var errGmailDisabled = errors.New("app.MailScanner: GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET, GMAIL_REFRESH_TOKEN and GMAIL_OWNER_ID are required")

// App holds the wired services.
type App struct {
	Metrics      *metrics.Metrics
	Reservations *service.ReservationService
	Groups       *service.GroupService
	Views        *service.ViewBuilder
	Ingest       *service.IngestService
	Users        *service.UserService
	Calendar     *service.CalendarService
	MessageLog   repo.MessageLogRepo

	cfg config.Config
	log *slog.Logger
}

// New wires every service against pool.
func New(cfg config.Config, pool *pgxpool.Pool, log *slog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if cfg.ExtractorAPIKey == "" {
		log.Warn("EXTRACTOR_API_KEY not set; document ingestion will find nothing")
	}

	m := metrics.New(MetricsNamespace)
	store := repo.NewStore(pool)
	reservations := repo.NewReservationRepo(pool)
	users := repo.NewUserRepo(pool)
	views := service.NewViewBuilder(reservations, users, loc, log)

	extractor := extract.New(extract.Config{
		APIKey:  cfg.ExtractorAPIKey,
		URL:     cfg.ExtractorURL,
		Model:   cfg.ExtractorModel,
		Timeout: cfg.ExtractorTimeout,
		Logger:  log,
	})
	ingest := service.NewIngestService(
		extractor,
		ratelimit.New(cfg.ExtractionRPS, cfg.ExtractionBurst),
		store,
		service.NewDuplicateDetector(service.DedupWithFingerprint),
		service.IngestConfig{
			ContentLimit: cfg.ContentLimit,
			StaleYears:   cfg.StaleYears,
			Recorder:     m,
			Logger:       log,
		},
	)

	return &App{
		Metrics:      m,
		Reservations: service.NewReservationService(reservations, store, service.NewDuplicateDetector(service.DedupStandard)),
		Groups:       service.NewGroupService(store, service.NewGroupKey),
		Views:        views,
		Ingest:       ingest,
		Users:        service.NewUserService(users),
		Calendar:     service.NewCalendarService(users, views, calendar.NewWriter(cfg.CalendarDomain, loc), nil),
		MessageLog:   repo.NewMessageLogRepo(pool),
		cfg:          cfg,
		log:          log,
	}, nil
}

// HandlerDeps returns the handler dependencies. trigger may be nil when
// mailbox polling is off.
func (a *App) HandlerDeps(trigger chan<- struct{}) handler.Deps {
	return handler.Deps{
		Reservations: a.Reservations,
		Groups:       a.Groups,
		Views:        a.Views,
		Ingest:       a.Ingest,
		Users:        a.Users,
		Calendar:     a.Calendar,
		Metrics:      a.Metrics.Handler(),
		OpenAPI:      spec.OpenAPI,
		MailTrigger:  trigger,
		Logger:       a.log,
	}
}

// MailScanner builds the Gmail scanner for the configured owner, looking
// daysBack days into the mailbox (zero for the default). It returns an error
// when polling is not configured.
func (a *App) MailScanner(ctx context.Context, daysBack int) (*mailsource.Scanner, error) {
	if !a.cfg.GmailEnabled() {
		return nil, errGmailDisabled
	}
	box, err := mailsource.NewGmail(ctx, mailsource.OAuthConfig{
		ClientID:     a.cfg.GmailClientID,
		ClientSecret: a.cfg.GmailClientSecret,
		RefreshToken: a.cfg.GmailRefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("app.MailScanner: %w", err)
	}
	senders := a.cfg.GmailAllowedSenders
	if len(senders) == 0 {
		senders = mailsource.DefaultSenders
	}
	return mailsource.NewScanner(box, a.MessageLog, a.Ingest, mailsource.ScannerConfig{
		Owner:    a.cfg.GmailOwnerID,
		Allow:    mailsource.NewAllowList(senders),
		DaysBack: daysBack,
		Observer: a.Metrics,
		Logger:   a.log.With(slog.String("component", "mailsource")),
	}), nil
}

// Migrator returns a goose provider over the embedded migrations. Close the
// returned *sql.DB when done.
func Migrator(pool *pgxpool.Pool) (*goose.Provider, *sql.DB, error) {
	db := stdlib.OpenDBFromPool(pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("app.Migrator: %w", err)
	}
	return provider, db, nil
}

// MigrateUp applies pending migrations and logs each one.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	provider, db, err := Migrator(pool)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("app.MigrateUp: %w", err)
	}
	for _, r := range results {
		log.Info("migration applied", slog.Int64("version", r.Source.Version), slog.Duration("took", r.Duration))
	}
	return nil
}
