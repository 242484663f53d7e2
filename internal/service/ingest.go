package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/r3labs/diff/v3"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/namematch"
	"github.com/pkordes/itinerary/internal/repo"
)

// DefaultContentLimit caps the text handed to the extractor, in runes.
const DefaultContentLimit = 15000

// Extractor turns free text into reservation payloads. Implementations fail
// closed: anything they cannot parse comes back as zero payloads.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]domain.Payload, error)
}

// Throttle bounds how often one key may call the extractor.
type Throttle interface {
	Wait(ctx context.Context, key string) error
}

// Recorder receives ingestion telemetry.
type Recorder interface {
	ExtractionDone(d time.Duration, payloads int, err error)
	IngestDone(created, duplicates, updated, skipped int)
}

type noopRecorder struct{}

func (noopRecorder) ExtractionDone(time.Duration, int, error) {}
func (noopRecorder) IngestDone(int, int, int, int)            {}

// Document is one unit of source material: an email or the text of a PDF.
type Document struct {
	Subject string
	Text    string
	Source  domain.Source
	// SkipPast drops reservations that start before today. Mailbox backfills
	// set it so old confirmations do not resurface.
	SkipPast bool
}

// IngestResult summarizes one ingestion.
type IngestResult struct {
	Created    int             `json:"created"`
	Duplicates int             `json:"duplicates"`
	Updated    int             `json:"updated"`
	Skipped    int             `json:"skipped"`
	GroupKey   domain.GroupKey `json:"group_key,omitempty"`
	IDs        []uuid.UUID     `json:"ids"`
}

// IngestConfig holds the tunables of IngestService.
type IngestConfig struct {
	ContentLimit int
	StaleYears   []int
	Now          func() time.Time
	NewKey       KeyFunc
	Recorder     Recorder
	Logger       *slog.Logger
}

// IngestService runs the document pipeline: extract, correct years, map,
// and save with duplicate suppression.
type IngestService struct {
	extractor Extractor
	throttle  Throttle
	tx        repo.Transactor
	detector  *DuplicateDetector
	years     YearCorrector
	limit     int
	now       func() time.Time
	newKey    KeyFunc
	rec       Recorder
	log       *slog.Logger
}

// NewIngestService constructs an IngestService. throttle may be nil.
func NewIngestService(extractor Extractor, throttle Throttle, tx repo.Transactor, detector *DuplicateDetector, cfg IngestConfig) *IngestService {
	if detector == nil {
		detector = NewDuplicateDetector(DedupWithFingerprint)
	}
	if cfg.ContentLimit <= 0 {
		cfg.ContentLimit = DefaultContentLimit
	}
	if cfg.StaleYears == nil {
		cfg.StaleYears = DefaultStaleYears
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewKey == nil {
		cfg.NewKey = NewGroupKey
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &IngestService{
		extractor: extractor,
		throttle:  throttle,
		tx:        tx,
		detector:  detector,
		years:     NewYearCorrector(cfg.StaleYears, cfg.Now),
		limit:     cfg.ContentLimit,
		now:       cfg.Now,
		newKey:    cfg.NewKey,
		rec:       cfg.Recorder,
		log:       cfg.Logger,
	}
}

// Ingest extracts reservations from doc and stores them for owner.
//
// Extraction problems never surface as errors: a failed extraction yields
// an empty result. Errors are returned for cancellation and storage
// failures, in which case nothing from this document is stored.
func (s *IngestService) Ingest(ctx context.Context, owner uuid.UUID, doc Document) (IngestResult, error) {
	text := doc.Text
	if doc.Subject != "" {
		text = doc.Subject + "\n\n" + text
	}
	text = TruncateRunes(text, s.limit)
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, fmt.Errorf("%w: document is empty", domain.ErrValidation)
	}
	if doc.Source == domain.SourceUnset || doc.Source == domain.SourceManual {
		doc.Source = domain.SourceOtherAutomatic
	}

	if s.throttle != nil {
		if err := s.throttle.Wait(ctx, owner.String()); err != nil {
			return IngestResult{}, fmt.Errorf("service.IngestService.Ingest: throttle: %w", err)
		}
	}

	started := time.Now()
	payloads, err := s.extractor.Extract(ctx, text)
	s.rec.ExtractionDone(time.Since(started), len(payloads), err)
	if err != nil {
		if ctx.Err() != nil {
			return IngestResult{}, fmt.Errorf("service.IngestService.Ingest: %w", ctx.Err())
		}
		s.log.Warn("extraction failed", slog.String("owner", owner.String()), slog.String("error", err.Error()))
		return IngestResult{}, nil
	}

	var res IngestResult
	candidates := s.mapPayloads(payloads, text, doc, owner, &res)

	err = s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		return s.save(ctx, r, owner, candidates, &res)
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("service.IngestService.Ingest: %w", err)
	}

	s.rec.IngestDone(res.Created, res.Duplicates, res.Updated, res.Skipped)
	s.log.Info("document ingested",
		slog.String("owner", owner.String()),
		slog.String("source", string(doc.Source)),
		slog.Int("created", res.Created),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (s *IngestService) mapPayloads(payloads []domain.Payload, text string, doc Document, owner uuid.UUID, res *IngestResult) []domain.Reservation {
	today := dateOnly(s.now())
	out := make([]domain.Reservation, 0, len(payloads))
	for i, p := range payloads {
		if s.years.Fix(p, text) {
			s.log.Debug("stale year corrected", slog.Int("payload", i))
		}
		r, err := domain.FromPayload(p, doc.Source)
		if err != nil {
			res.Skipped++
			s.log.Warn("payload skipped", slog.Int("payload", i), slog.String("error", err.Error()))
			continue
		}
		if doc.SkipPast && r.StartAt.Before(today) {
			res.Skipped++
			continue
		}
		r.OwnerID = &owner
		out = append(out, r)
	}
	return out
}

// save runs inside the owner transaction. New records share one fresh key,
// or join the stored group of a record they duplicated.
func (s *IngestService) save(ctx context.Context, r repo.ReservationRepo, owner uuid.UUID, candidates []domain.Reservation, res *IngestResult) error {
	var (
		created   []domain.Reservation
		createdID = map[uuid.UUID]bool{}
		joinGroup *domain.Reservation
	)
	for _, c := range candidates {
		m, err := s.detector.Find(ctx, r, owner, c, createdID)
		if err != nil {
			return err
		}
		if m.Found {
			res.Duplicates++
			if !m.Mergeable {
				continue
			}
			if joinGroup == nil && m.Record.GroupID != nil {
				rec := m.Record
				joinGroup = &rec
			}
			changed, err := s.supplement(ctx, r, m.Record, c)
			if err != nil {
				return err
			}
			if changed {
				res.Updated++
			}
			continue
		}

		stored, err := r.Create(ctx, c)
		if err != nil {
			return err
		}
		created = append(created, stored)
		createdID[stored.ID] = true
		res.IDs = append(res.IDs, stored.ID)
	}
	res.Created = len(created)
	if len(created) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(created))
	for i, c := range created {
		ids[i] = c.ID
	}
	switch {
	case joinGroup != nil:
		res.GroupKey = joinGroup.GroupKey()
		return r.AssignGroup(ctx, owner, ids, joinGroup.GroupID, joinGroup.TripName)
	case len(created) == 1:
		res.GroupKey = created[0].GroupKey()
		return r.Rename(ctx, owner, created[0].ID, TripName(created))
	default:
		key, err := s.newKey()
		if err != nil {
			return fmt.Errorf("generate group key: %w", err)
		}
		res.GroupKey = domain.GroupKey(key)
		return r.AssignGroup(ctx, owner, ids, &key, TripName(created))
	}
}

// supplement fills what the stored copy lacks from a duplicate and writes
// it back when that changed anything. Identity fields are never touched.
func (s *IngestService) supplement(ctx context.Context, r repo.ReservationRepo, stored, incoming domain.Reservation) (bool, error) {
	merged := Supplement(stored, incoming)
	changes, err := diff.Diff(mutableView(stored), mutableView(merged))
	if err != nil {
		return false, fmt.Errorf("diff reservation: %w", err)
	}
	if len(changes) == 0 {
		return false, nil
	}
	merged.Revision++
	if _, err := r.Update(ctx, merged); err != nil {
		return false, err
	}
	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, strings.Join(c.Path, "."))
	}
	s.log.Info("duplicate supplemented stored reservation",
		slog.String("id", stored.ID.String()), slog.Any("fields", fields))
	return true, nil
}

// Supplement returns stored with blanks filled from incoming: the end, the
// provider, price and notes, any codes it does not carry yet, and
// passengers it does not already list.
func Supplement(stored, incoming domain.Reservation) domain.Reservation {
	out := stored
	if out.EndAt == nil && incoming.EndAt != nil {
		end := *incoming.EndAt
		out.EndAt, out.EndTimeKnown = &end, incoming.EndTimeKnown
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&out.Provider, incoming.Provider)
	fill(&out.Price, incoming.Price)
	fill(&out.Notes, incoming.Notes)

	have := map[string]bool{out.Code: true}
	out.AltCodes = append([]string(nil), stored.AltCodes...)
	for _, c := range out.AltCodes {
		have[c] = true
	}
	for _, c := range incoming.Codes() {
		if !have[c] {
			have[c] = true
			out.AltCodes = append(out.AltCodes, c)
		}
	}

	out.Passengers = append([]domain.Passenger(nil), stored.Passengers...)
	for _, p := range incoming.Passengers {
		if !listsPassenger(out.Passengers, p.Name) {
			out.Passengers = append(out.Passengers, p)
		}
	}
	if out.Validate() != nil {
		// An end that would precede the start is dropped rather than stored.
		out.EndAt, out.EndTimeKnown = stored.EndAt, stored.EndTimeKnown
	}
	return out
}

func listsPassenger(list []domain.Passenger, name string) bool {
	n := namematch.Normalize(strings.ReplaceAll(name, "/", " "))
	if n == "" {
		return true
	}
	for _, p := range list {
		have := namematch.Normalize(strings.ReplaceAll(p.Name, "/", " "))
		if have != "" && (strings.Contains(have, n) || strings.Contains(n, have)) {
			return true
		}
	}
	return false
}

// mutableFields is the part of a reservation duplicates may change, in a
// shape the change log can compare.
type mutableFields struct {
	End        string   `diff:"end"`
	Provider   string   `diff:"provider"`
	Price      string   `diff:"price"`
	Notes      string   `diff:"notes"`
	AltCodes   []string `diff:"alt_codes"`
	Passengers []string `diff:"passengers"`
}

func mutableView(r domain.Reservation) mutableFields {
	f := mutableFields{Provider: r.Provider, Price: r.Price, Notes: r.Notes, AltCodes: r.AltCodes}
	if r.EndAt != nil {
		f.End = r.EndAt.Format(time.RFC3339)
	}
	for _, p := range r.Passengers {
		f.Passengers = append(f.Passengers, p.Name)
	}
	return f
}

// TruncateRunes returns at most limit runes of s. A limit of zero or less
// disables truncation.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
