package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

// DedupMode selects how aggressively the detector looks for duplicates.
type DedupMode int

const (
	// DedupStandard matches on reservation code when the candidate has one
	// and on the fallback tuple only when it does not.
	DedupStandard DedupMode = iota

	// DedupWithFingerprint also checks the fallback tuple for candidates
	// that carry a code. Scanning pipelines use it because the same flight
	// often arrives under an agency code and an airline code.
	DedupWithFingerprint
)

// Match is the outcome of a duplicate lookup.
type Match struct {
	// Found reports whether the candidate duplicates a stored record.
	Found bool

	// Record is the stored copy the candidate duplicates. It is only
	// meaningful when Mergeable is true.
	Record domain.Reservation

	// Mergeable is false when the candidate matched several records by
	// code and none of them is clearly the same segment. The candidate is
	// still a duplicate but nothing should be written back.
	Mergeable bool
}

// DuplicateDetector decides whether a candidate reservation is already
// stored for its owner. It only reads.
type DuplicateDetector struct {
	mode DedupMode
}

// NewDuplicateDetector constructs a detector in the given mode.
func NewDuplicateDetector(mode DedupMode) *DuplicateDetector {
	return &DuplicateDetector{mode: mode}
}

// IsDuplicate reports whether candidate is already stored for owner.
// A candidate with no code and an incomplete fallback tuple is never a duplicate.
func (d *DuplicateDetector) IsDuplicate(ctx context.Context, r repo.ReservationRepo, owner uuid.UUID, candidate domain.Reservation) (bool, error) {
	m, err := d.Find(ctx, r, owner, candidate, nil)
	if err != nil {
		return false, err
	}
	return m.Found, nil
}

// Find looks up the stored copy of candidate. Records whose ids are in
// exclude are ignored for code matching; ingestion passes the records it
// has just created from the same document, whose segments share one code.
func (d *DuplicateDetector) Find(ctx context.Context, r repo.ReservationRepo, owner uuid.UUID, candidate domain.Reservation, exclude map[uuid.UUID]bool) (Match, error) {
	fp, hasFP := candidate.Fingerprint()

	if codes := candidate.Codes(); len(codes) > 0 {
		found, err := r.FindByCodes(ctx, owner, codes)
		if err != nil {
			return Match{}, fmt.Errorf("service.DuplicateDetector.Find: %w", err)
		}
		found = without(found, exclude)
		if len(found) > 0 {
			return pickCodeMatch(found, candidate, fp, hasFP), nil
		}
		if d.mode == DedupStandard {
			return Match{}, nil
		}
	}

	if !hasFP {
		return Match{}, nil
	}
	found, err := r.FindByFingerprint(ctx, owner, fp)
	if err != nil {
		return Match{}, fmt.Errorf("service.DuplicateDetector.Find: %w", err)
	}
	if len(found) == 0 {
		return Match{}, nil
	}
	return Match{Found: true, Record: found[0], Mergeable: true}, nil
}

// pickCodeMatch narrows several code matches down to the one describing the
// same segment: the same fallback tuple first, then the same start date. A
// single match is taken as is.
func pickCodeMatch(found []domain.Reservation, candidate domain.Reservation, fp domain.Fingerprint, hasFP bool) Match {
	if len(found) == 1 {
		return Match{Found: true, Record: found[0], Mergeable: true}
	}
	if hasFP {
		for _, f := range found {
			if ffp, ok := f.Fingerprint(); ok && ffp == fp {
				return Match{Found: true, Record: f, Mergeable: true}
			}
		}
	}
	for _, f := range found {
		if sameDay(f.StartAt, candidate.StartAt) {
			return Match{Found: true, Record: f, Mergeable: true}
		}
	}
	return Match{Found: true}
}

func without(rs []domain.Reservation, exclude map[uuid.UUID]bool) []domain.Reservation {
	if len(exclude) == 0 {
		return rs
	}
	out := rs[:0:0]
	for _, r := range rs {
		if !exclude[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
