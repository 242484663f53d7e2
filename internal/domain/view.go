package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaggedPassenger is a passenger shown on a combined segment, labelled with
// the reservation code of the copy it came from.
type TaggedPassenger struct {
	Passenger
	Code string
}

// SegmentView is the presentation wrapper the view builder produces for one
// displayed segment. When several stored records describe the same segment
// (the same flight captured from two bookings) they collapse into one view
// with Combined set; Record holds the richest merged field set and is
// never written back.
type SegmentView struct {
	Record     Reservation
	Combined   bool
	SourceIDs  []uuid.UUID
	Codes      []string
	Passengers []TaggedPassenger
	Claimed    bool // reached through the passenger-name heuristic, not ownership
}

// TripSpan is a synthesized multi-day entry covering a whole trip. End is
// exclusive (the day after the last day), matching all-day calendar events.
type TripSpan struct {
	Title string
	Start time.Time
	End   time.Time
}

// TripView is one trip group ready for display or export.
type TripView struct {
	Key           GroupKey
	Name          string
	PrincipalCity string
	Segments      []SegmentView
	Span          *TripSpan
}

// Start returns the start of the earliest segment.
func (t TripView) Start() time.Time {
	if len(t.Segments) == 0 {
		return time.Time{}
	}
	return t.Segments[0].Record.StartAt
}

// Itinerary is the assembled view for one user at a point in time.
// Upcoming is ordered soonest first, Past most recent first.
type Itinerary struct {
	Upcoming []TripView
	Past     []TripView
}
