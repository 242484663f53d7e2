package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/cities"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/namematch"
	"github.com/pkordes/itinerary/internal/repo"
)

// ViewOptions tunes how records are assembled into trips.
type ViewOptions struct {
	CombineSegments bool
	ShowTripSpan    bool
	// DropCancelled hides cancelled segments; the feed uses it.
	DropCancelled bool
}

// OptionsFor returns the view options a user's preferences ask for.
func OptionsFor(u domain.User) ViewOptions {
	return ViewOptions{CombineSegments: u.CombineSegments, ShowTripSpan: u.ShowTripSpan}
}

// ViewBuilder assembles the itinerary a user sees.
type ViewBuilder struct {
	reservations repo.ReservationRepo
	users        repo.UserRepo
	loc          *time.Location
	log          *slog.Logger
}

// NewViewBuilder constructs a ViewBuilder. Stored times are wall-clock in loc.
func NewViewBuilder(reservations repo.ReservationRepo, users repo.UserRepo, loc *time.Location, log *slog.Logger) *ViewBuilder {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &ViewBuilder{reservations: reservations, users: users, loc: loc, log: log}
}

// Build returns the user's itinerary as of asOf: the records they own plus
// the records on which their traveler profile appears as a passenger.
func (b *ViewBuilder) Build(ctx context.Context, owner uuid.UUID, asOf time.Time) (domain.Itinerary, error) {
	user, err := b.users.GetByID(ctx, owner)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ViewBuilder.Build: %w", err)
	}
	return b.BuildFor(ctx, user, asOf, OptionsFor(user))
}

// BuildFor is Build for an already loaded user with explicit options.
func (b *ViewBuilder) BuildFor(ctx context.Context, user domain.User, asOf time.Time, opts ViewOptions) (domain.Itinerary, error) {
	records, err := b.visibleRecords(ctx, user)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ViewBuilder.Build: %w", err)
	}
	return Assemble(records, asOf.In(b.loc), opts, b.log), nil
}

// Group returns a single trip of owner regardless of date, for export.
func (b *ViewBuilder) Group(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (domain.TripView, error) {
	user, err := b.users.GetByID(ctx, owner)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.ViewBuilder.Group: %w", err)
	}
	members, err := groupMembers(ctx, b.reservations, owner, key)
	if err != nil {
		return domain.TripView{}, fmt.Errorf("service.ViewBuilder.Group: %w", err)
	}
	records := make([]ViewRecord, len(members))
	for i, m := range members {
		records[i] = ViewRecord{Reservation: m}
	}
	trips := assembleTrips(records, OptionsFor(user), b.log)
	if len(trips) == 0 {
		return domain.TripView{}, fmt.Errorf("service.ViewBuilder.Group: %w", domain.ErrNotFound)
	}
	return trips[0], nil
}

func (b *ViewBuilder) visibleRecords(ctx context.Context, user domain.User) ([]ViewRecord, error) {
	owned, err := b.reservations.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	out := make([]ViewRecord, 0, len(owned))
	for _, r := range owned {
		out = append(out, ViewRecord{Reservation: r})
	}

	profile := namematch.Profile{Surname: user.TravelerSurname, GivenNames: user.TravelerGivenNames}
	if !profile.Configured() {
		return out, nil
	}
	candidates, err := b.reservations.ListPassengerCandidates(ctx, user.ID, user.TravelerSurname)
	if err != nil {
		return nil, err
	}
	for _, r := range candidates {
		for _, p := range r.Passengers {
			if profile.Matches(p.Name) {
				out = append(out, ViewRecord{Reservation: r, Claimed: true})
				break
			}
		}
	}
	return out, nil
}

// ViewRecord is a record visible to the viewer, marked when it was reached
// through the passenger-name heuristic rather than ownership.
type ViewRecord struct {
	domain.Reservation
	Claimed bool
}

// Assemble is the pure part of Build. Records starting at or after asOf
// (compared as wall-clock values in asOf's location) are upcoming; the rest
// are past. Records without a start are dropped and logged.
func Assemble(records []ViewRecord, asOf time.Time, opts ViewOptions, log *slog.Logger) domain.Itinerary {
	if log == nil {
		log = slog.Default()
	}
	now := wallClock(asOf)

	var upcoming, past []ViewRecord
	for _, r := range records {
		if r.StartAt.IsZero() {
			log.Warn("reservation without start skipped from view",
				slog.String("id", r.ID.String()), slog.String("kind", string(r.Kind)))
			continue
		}
		if opts.DropCancelled && r.Status == domain.StatusCancelled {
			continue
		}
		if r.StartAt.Before(now) {
			past = append(past, r)
		} else {
			upcoming = append(upcoming, r)
		}
	}

	it := domain.Itinerary{
		Upcoming: assembleTrips(upcoming, opts, log),
		Past:     assembleTrips(past, opts, log),
	}
	sort.SliceStable(it.Past, func(i, j int) bool { return it.Past[i].Start().After(it.Past[j].Start()) })
	return it
}

// assembleTrips groups records into trips ordered by their earliest segment.
func assembleTrips(records []ViewRecord, opts ViewOptions, log *slog.Logger) []domain.TripView {
	sort.SliceStable(records, func(i, j int) bool { return records[i].StartAt.Before(records[j].StartAt) })

	var (
		order   []domain.GroupKey
		members = map[domain.GroupKey][]ViewRecord{}
	)
	for _, r := range records {
		key := r.GroupKey()
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], r)
	}

	var (
		byKey  = map[domain.GroupKey][]domain.SegmentView{}
		record = map[domain.GroupKey][]domain.Reservation{}
	)
	for _, key := range order {
		var segs []domain.SegmentView
		if opts.CombineSegments {
			segs = combineSegments(members[key])
		} else {
			for _, r := range members[key] {
				segs = append(segs, singleView(r))
			}
		}
		byKey[key] = segs
		for _, v := range segs {
			record[key] = append(record[key], v.Record)
		}
	}

	trips := make([]domain.TripView, 0, len(order))
	for _, key := range order {
		segs := byKey[key]
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].Record.StartAt.Before(segs[j].Record.StartAt) })

		tv := domain.TripView{Key: key, Segments: segs, Name: tripName(segs)}
		if city, ok := PrincipalCity(record[key]); ok {
			tv.PrincipalCity = cities.Name(city)
		}
		if opts.ShowTripSpan && !key.IsSolo() && len(segs) >= 2 {
			tv.Span = tripSpan(tv)
		}
		trips = append(trips, tv)
	}
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].Start().Before(trips[j].Start()) })

	if len(records) > 0 {
		log.Debug("trips assembled", slog.Int("records", len(records)), slog.Int("trips", len(trips)))
	}
	return trips
}

// combineSegments collapses the records of one group that describe the
// same segment: the same fallback tuple and a compatible provider (equal,
// or one side blank). Records of different groups are never combined.
func combineSegments(records []ViewRecord) []domain.SegmentView {
	var clusters [][]ViewRecord
	for _, r := range records {
		fp, ok := r.Fingerprint()
		joined := false
		if ok {
			for i, c := range clusters {
				cfp, cok := c[0].Fingerprint()
				if cok && cfp == fp && providersCompatible(c, r.Provider) {
					clusters[i] = append(c, r)
					joined = true
					break
				}
			}
		}
		if !joined {
			clusters = append(clusters, []ViewRecord{r})
		}
	}

	out := make([]domain.SegmentView, 0, len(clusters))
	for _, c := range clusters {
		if len(c) == 1 {
			out = append(out, singleView(c[0]))
			continue
		}
		anchor := c[0]
		for _, r := range c {
			if !r.Claimed {
				anchor = r
				break
			}
		}
		out = append(out, mergedView(c, anchor))
	}
	return out
}

func providersCompatible(cluster []ViewRecord, provider string) bool {
	if provider == "" {
		return true
	}
	for _, r := range cluster {
		if r.Provider != "" && r.Provider != provider {
			return false
		}
	}
	return true
}

func singleView(r ViewRecord) domain.SegmentView {
	v := domain.SegmentView{
		Record:    r.Reservation,
		SourceIDs: []uuid.UUID{r.ID},
		Claimed:   r.Claimed,
	}
	if r.Code != "" {
		v.Codes = []string{r.Code}
	}
	for _, p := range r.Passengers {
		v.Passengers = append(v.Passengers, domain.TaggedPassenger{Passenger: p, Code: r.Code})
	}
	return v
}

// mergedView builds one view from several copies of a segment. The copy with
// the most populated fields is the base and blanks are filled from the rest.
func mergedView(cluster []ViewRecord, anchor ViewRecord) domain.SegmentView {
	base := cluster[0]
	for _, r := range cluster[1:] {
		if richness(r.Reservation) > richness(base.Reservation) {
			base = r
		}
	}
	rec := base.Reservation
	rec.ID, rec.OwnerID = anchor.ID, anchor.OwnerID
	rec.GroupID, rec.TripName = anchor.GroupID, anchor.TripName

	v := domain.SegmentView{Combined: true, Claimed: anchor.Claimed}
	seenCode := map[string]bool{}
	for _, r := range cluster {
		fillBlanks(&rec, r.Reservation)
		v.SourceIDs = append(v.SourceIDs, r.ID)
		if r.Code != "" && !seenCode[r.Code] {
			seenCode[r.Code] = true
			v.Codes = append(v.Codes, r.Code)
		}
		for _, p := range r.Passengers {
			v.Passengers = append(v.Passengers, domain.TaggedPassenger{Passenger: p, Code: r.Code})
		}
	}
	v.Record = rec
	return v
}

func richness(r domain.Reservation) int {
	n := 0
	for _, s := range []string{r.Origin, r.Destination, r.Code, r.Provider, r.SegmentNumber, r.Price, r.Notes} {
		if s != "" {
			n++
		}
	}
	if r.EndAt != nil {
		n++
	}
	if r.StartTimeKnown {
		n++
	}
	return n + len(r.Passengers)
}

func fillBlanks(dst *domain.Reservation, src domain.Reservation) {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Origin, src.Origin)
	fill(&dst.Destination, src.Destination)
	fill(&dst.Code, src.Code)
	fill(&dst.Provider, src.Provider)
	fill(&dst.Price, src.Price)
	fill(&dst.Notes, src.Notes)
	if dst.EndAt == nil && src.EndAt != nil {
		end := *src.EndAt
		dst.EndAt, dst.EndTimeKnown = &end, src.EndTimeKnown
	}
	if !dst.StartTimeKnown && src.StartTimeKnown {
		dst.StartAt, dst.StartTimeKnown = src.StartAt, true
	}
}

// tripName prefers a stored name on any member and falls back to the automatic one.
func tripName(segs []domain.SegmentView) string {
	records := make([]domain.Reservation, len(segs))
	for i, s := range segs {
		if s.Record.TripName != "" {
			return s.Record.TripName
		}
		records[i] = s.Record
	}
	return TripName(records)
}

// tripSpan covers whole days from the first start to the last arrival, with
// an exclusive end.
func tripSpan(tv domain.TripView) *domain.TripSpan {
	start := dateOnly(tv.Segments[0].Record.StartAt)
	last := start
	for _, s := range tv.Segments {
		if d := dateOnly(s.Record.Arrival()); d.After(last) {
			last = d
		}
	}
	return &domain.TripSpan{Title: tv.Name, Start: start, End: last.AddDate(0, 0, 1)}
}

// wallClock relabels t's local reading as UTC, the form stored times take.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return dateOnly(a).Equal(dateOnly(b))
}
