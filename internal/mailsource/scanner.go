package mailsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
	"github.com/pkordes/itinerary/internal/service"
)

const (
	// BodyLimit caps the characters of a message body sent to extraction.
	BodyLimit = 8000

	DefaultDaysBack    = 30
	DefaultMaxMessages = 30
)

// Ingester is the part of service.IngestService the scanner drives.
type Ingester interface {
	Ingest(ctx context.Context, owner uuid.UUID, doc service.Document) (service.IngestResult, error)
}

// Observer receives per-message outcomes.
type Observer interface {
	MessageSeen(outcome string)
}

type noopObserver struct{}

func (noopObserver) MessageSeen(string) {}

// ScanResult summarizes one scan.
type ScanResult struct {
	Listed    int `json:"listed"`
	Ingested  int `json:"ingested"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
	Created   int `json:"created"`
	Duplicate int `json:"duplicates"`
}

// ScannerConfig holds the tunables of a Scanner.
type ScannerConfig struct {
	Owner       uuid.UUID
	Allow       AllowList
	DaysBack    int
	MaxMessages int64
	Now         func() time.Time
	Observer    Observer
	Logger      *slog.Logger
}

// Scanner pulls new booking mail for one owner and ingests it.
type Scanner struct {
	box    Mailbox
	seen   repo.MessageLogRepo
	ingest Ingester
	cfg    ScannerConfig
}

// NewScanner constructs a Scanner, filling defaults for zero config fields.
func NewScanner(box Mailbox, seen repo.MessageLogRepo, ingest Ingester, cfg ScannerConfig) *Scanner {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = DefaultDaysBack
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scanner{box: box, seen: seen, ingest: ingest, cfg: cfg}
}

// Scan lists recent messages from allowed senders and ingests the ones not
// processed before. A message is marked processed only after a successful
// ingestion, so failures are retried on the next scan. Per-message failures
// are logged and counted; only listing and log lookups abort the scan.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	log := s.cfg.Logger.With(slog.String("owner", s.cfg.Owner.String()))
	query := s.cfg.Allow.Query(s.cfg.Now().AddDate(0, 0, -s.cfg.DaysBack))

	ids, err := s.box.List(ctx, query, s.cfg.MaxMessages)
	if err != nil {
		return ScanResult{}, fmt.Errorf("mailsource.Scanner.Scan: %w", err)
	}
	res := ScanResult{Listed: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}

	done, err := s.seen.Processed(ctx, s.cfg.Owner, ids)
	if err != nil {
		return res, fmt.Errorf("mailsource.Scanner.Scan: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return res, fmt.Errorf("mailsource.Scanner.Scan: %w", ctx.Err())
		}
		if done[id] {
			res.Skipped++
			s.cfg.Observer.MessageSeen("processed")
			continue
		}
		outcome := s.scanOne(ctx, log, id, &res)
		s.cfg.Observer.MessageSeen(outcome)
	}

	log.Info("mailbox scanned",
		slog.Int("listed", res.Listed),
		slog.Int("ingested", res.Ingested),
		slog.Int("skipped", res.Skipped),
		slog.Int("rejected", res.Rejected),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Scanner) scanOne(ctx context.Context, log *slog.Logger, id string, res *ScanResult) string {
	msg, err := s.box.Get(ctx, id)
	if err != nil {
		res.Failed++
		log.Warn("fetch message failed", slog.String("message", id), slog.String("error", err.Error()))
		return "failed"
	}
	if !s.cfg.Allow.Allowed(msg.From) {
		res.Rejected++
		log.Debug("sender not allowed", slog.String("message", id), slog.String("from", msg.From))
		// Never allowed, so there is nothing to retry.
		if err := s.seen.MarkProcessed(ctx, s.cfg.Owner, id); err != nil {
			log.Warn("mark message failed", slog.String("message", id), slog.String("error", err.Error()))
		}
		return "rejected"
	}

	out, err := s.ingest.Ingest(ctx, s.cfg.Owner, service.Document{
		Subject:  msg.Subject,
		Text:     service.TruncateRunes(msg.Body, BodyLimit),
		Source:   domain.SourceEmailAutomatic,
		SkipPast: true,
	})
	if err != nil && !errors.Is(err, domain.ErrValidation) {
		res.Failed++
		log.Warn("ingest message failed", slog.String("message", id), slog.String("error", err.Error()))
		return "failed"
	}
	if err := s.seen.MarkProcessed(ctx, s.cfg.Owner, id); err != nil {
		res.Failed++
		log.Warn("mark message failed", slog.String("message", id), slog.String("error", err.Error()))
		return "failed"
	}
	res.Ingested++
	res.Created += out.Created
	res.Duplicate += out.Duplicates
	return "ingested"
}

// Run scans every interval until ctx is done. The first scan runs immediately.
// Trigger requests an extra scan without waiting for the ticker.
func (s *Scanner) Run(ctx context.Context, interval time.Duration, trigger <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.cfg.Logger.Error("mailbox scan failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			s.cfg.Logger.Info("mailbox polling stopped")
			return
		case <-ticker.C:
		case <-trigger:
		}
	}
}
