package service

import (
	"sort"
	"time"

	"github.com/pkordes/itinerary/internal/cities"
	"github.com/pkordes/itinerary/internal/domain"
)

// PrincipalCity picks the place a trip is "to": the destination where the
// traveler spends the longest time between arriving and leaving again.
//
// When the trip contains flights only the flights are considered, since
// hotel and dinner destinations are property names rather than places.
// Segments are ordered by start. For every adjacent pair the gap between
// the first segment's arrival and the next segment's start is credited to
// the first segment's destination; negative gaps count as zero. The city
// with the most credit wins and ties go to the city seen first. When no
// gap can be computed the last destination wins.
func PrincipalCity(segments []domain.Reservation) (string, bool) {
	segs := principalCandidates(segments)
	switch len(segs) {
	case 0:
		return "", false
	case 1:
		return segs[0].Destination, segs[0].Destination != ""
	}

	var (
		order []string
		stay  = map[string]time.Duration{}
	)
	for i := 0; i < len(segs)-1; i++ {
		cur, next := segs[i], segs[i+1]
		if cur.Destination == "" || cur.StartAt.IsZero() || next.StartAt.IsZero() {
			continue
		}
		gap := max(next.StartAt.Sub(cur.Arrival()), 0)
		if _, seen := stay[cur.Destination]; !seen {
			order = append(order, cur.Destination)
		}
		stay[cur.Destination] += gap
	}

	if len(order) == 0 {
		last := segs[len(segs)-1].Destination
		return last, last != ""
	}

	best := order[0]
	for _, city := range order[1:] {
		if stay[city] > stay[best] {
			best = city
		}
	}
	return best, true
}

// TripName returns the automatic display name for a set of segments,
// "Trip to <city>", or "Trip" when no principal city can be found.
func TripName(segments []domain.Reservation) string {
	city, ok := PrincipalCity(segments)
	if !ok {
		return "Trip"
	}
	return "Trip to " + cities.Name(city)
}

func principalCandidates(segments []domain.Reservation) []domain.Reservation {
	var flights, all []domain.Reservation
	for _, s := range segments {
		all = append(all, s)
		if s.Kind == domain.KindFlight {
			flights = append(flights, s)
		}
	}
	out := all
	if len(flights) > 0 {
		out = flights
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}
