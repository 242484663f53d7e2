// Package calendar renders trips as iCalendar documents: one-off exports a
// user imports into a calendar client, and the subscription feed.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pkordes/itinerary/internal/domain"
)

// Method is the kind of group export.
type Method string

const (
	MethodRequest Method = "request"
	MethodUpdate  Method = "update"
	MethodCancel  Method = "cancel"
)

// ParseMethod resolves an export method name; empty means request.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MethodRequest, nil
	case MethodRequest, MethodUpdate, MethodCancel:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown calendar method %q", domain.ErrValidation, s)
}

// cancelSequence is the floor for SEQUENCE on cancellations so they outrank
// any update a client may have seen.
const cancelSequence = 100

// Writer renders calendars. Stored reservation times are wall-clock values
// in the writer's location.
type Writer struct {
	domain string
	loc    *time.Location
	now    func() time.Time
}

// NewWriter builds a Writer that issues UIDs under uidDomain.
func NewWriter(uidDomain string, loc *time.Location) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{domain: uidDomain, loc: loc, now: time.Now}
}

// Export renders one trip for import with the given method. The attendee
// is the user the export is for.
func (w *Writer) Export(user domain.User, trip domain.TripView, m Method) string {
	cal := ics.NewCalendarFor("Itinerary")
	switch m {
	case MethodCancel:
		cal.SetMethod(ics.MethodCancel)
	default:
		cal.SetMethod(ics.MethodRequest)
	}

	for _, seg := range trip.Segments {
		ev := w.segmentEvent(cal, seg)
		rev := seg.Record.Revision
		switch m {
		case MethodCancel:
			ev.SetProperty(ics.ComponentPropertyStatus, "CANCELLED")
			ev.SetProperty(ics.ComponentPropertySequence, strconv.Itoa(max(rev+1, cancelSequence)))
		case MethodUpdate:
			ev.SetProperty(ics.ComponentPropertyStatus, "CONFIRMED")
			ev.SetProperty(ics.ComponentPropertySequence, strconv.Itoa(max(rev, 1)))
		default:
			ev.SetProperty(ics.ComponentPropertyStatus, "CONFIRMED")
			ev.SetProperty(ics.ComponentPropertySequence, "0")
		}
		ev.SetProperty(ics.ComponentPropertyOrganizer, "mailto:itinerary@"+w.domain)
		if user.Email != "" {
			ev.AddProperty(ics.ComponentPropertyAttendee, "mailto:"+user.Email)
		}
	}
	return cal.Serialize()
}

// Feed renders the subscription calendar for user from upcoming trips.
// Callers pass trips already stripped of cancelled segments.
func (w *Writer) Feed(user domain.User, trips []domain.TripView) string {
	cal := ics.NewCalendarFor("Itinerary")
	cal.SetMethod(ics.MethodPublish)
	name := "Itinerary"
	if user.DisplayName != "" {
		name = "Itinerary - " + user.DisplayName
	}
	cal.SetXWRCalName(name)
	cal.SetXWRTimezone(w.loc.String())
	cal.SetXWRCalDesc("Upcoming reservations grouped by trip")

	for _, trip := range trips {
		for _, seg := range trip.Segments {
			ev := w.segmentEvent(cal, seg)
			ev.SetProperty(ics.ComponentPropertyStatus, "CONFIRMED")
			ev.SetProperty(ics.ComponentPropertySequence, strconv.Itoa(seg.Record.Revision))
		}
		if trip.Span != nil {
			w.spanEvent(cal, trip)
		}
	}
	return cal.Serialize()
}

// UID returns the stable identifier of a record's event.
func (w *Writer) UID(r domain.Reservation) string {
	return fmt.Sprintf("%s-%s@%s", r.Kind, r.ID, w.domain)
}

// SpanUID returns the identifier of a trip's all-day span event.
func (w *Writer) SpanUID(key domain.GroupKey) string {
	return fmt.Sprintf("trip-span-%s@%s", key, w.domain)
}

func (w *Writer) spanEvent(cal *ics.Calendar, trip domain.TripView) {
	ev := cal.AddEvent(w.SpanUID(trip.Key))
	ev.SetDtStampTime(w.now())
	ev.SetSummary(trip.Span.Title)
	ev.SetAllDayStartAt(trip.Span.Start)
	ev.SetAllDayEndAt(trip.Span.End)
	ev.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
	ev.SetProperty(ics.ComponentPropertyCategories, "Trip")
}

func (w *Writer) segmentEvent(cal *ics.Calendar, seg domain.SegmentView) *ics.VEvent {
	r := seg.Record
	ev := cal.AddEvent(w.UID(r))
	ev.SetDtStampTime(w.now())
	ev.SetSummary(Summary(r))
	ev.SetDescription(Description(seg))
	if loc := location(r); loc != "" {
		ev.SetLocation(loc)
	}

	if allDay(r) {
		start, end := allDayRange(r)
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(end)
	} else {
		start, end := w.timedRange(r)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
	}

	alarm := ev.AddAlarm()
	alarm.SetProperty(ics.ComponentPropertyAction, "DISPLAY")
	alarm.SetProperty(ics.ComponentPropertyTrigger, "-PT24H")
	alarm.SetProperty(ics.ComponentPropertyDescription, Summary(r))
	return ev
}

// allDay reports whether r renders as whole days: hotels and car rentals
// always, cruises when they last more than a day.
func allDay(r domain.Reservation) bool {
	switch r.Kind {
	case domain.KindHotel, domain.KindCarRental:
		return true
	case domain.KindCruise:
		return r.EndAt != nil && r.EndAt.Sub(r.StartAt) > 24*time.Hour
	}
	return false
}

// allDayRange returns start and exclusive end dates.
func allDayRange(r domain.Reservation) (time.Time, time.Time) {
	start := dateOnly(r.StartAt)
	if r.EndAt != nil {
		return start, dateOnly(*r.EndAt).AddDate(0, 0, 1)
	}
	switch r.Kind {
	case domain.KindHotel:
		return start, start.AddDate(0, 0, 2)
	case domain.KindCarRental:
		return start, start.AddDate(0, 0, 8)
	}
	return start, start.AddDate(0, 0, 2)
}

var defaultDuration = map[domain.Kind]time.Duration{
	domain.KindShow:       3 * time.Hour,
	domain.KindRestaurant: 2 * time.Hour,
	domain.KindActivity:   4 * time.Hour,
	domain.KindTransfer:   time.Hour,
}

// timedRange places r in the writer's zone. A missing time of day becomes
// 20:00 for evening kinds and 09:00 otherwise; a missing or unusable end
// becomes a per-kind default duration.
func (w *Writer) timedRange(r domain.Reservation) (time.Time, time.Time) {
	start := r.StartAt
	if !r.StartTimeKnown {
		hour := 9
		if r.Kind == domain.KindShow || r.Kind == domain.KindRestaurant {
			hour = 20
		}
		start = dateOnly(start).Add(time.Duration(hour) * time.Hour)
	}
	d, ok := defaultDuration[r.Kind]
	if !ok {
		d = 2 * time.Hour
	}
	end := start.Add(d)
	if r.EndAt != nil && r.EndTimeKnown && r.EndAt.After(start) {
		end = *r.EndAt
	}
	return w.inZone(start), w.inZone(end)
}

func (w *Writer) inZone(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, w.loc)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var kindIcon = map[domain.Kind]string{
	domain.KindFlight:     "✈️",
	domain.KindHotel:      "🏨",
	domain.KindCruise:     "⛵",
	domain.KindCarRental:  "🚗",
	domain.KindRestaurant: "🍽️",
	domain.KindShow:       "🎭",
	domain.KindActivity:   "🎯",
	domain.KindTrain:      "🚆",
	domain.KindTransfer:   "🚕",
}

// Summary is the one-line event title for r.
func Summary(r domain.Reservation) string {
	var title string
	route := ""
	if r.Origin != "" && r.Destination != "" {
		route = r.Origin + " → " + r.Destination
	}
	switch r.Kind {
	case domain.KindFlight:
		switch {
		case r.SegmentNumber != "" && route != "":
			title = r.SegmentNumber + ": " + route
		case r.SegmentNumber != "":
			title = r.SegmentNumber
		default:
			title = firstNonEmpty(route, r.Provider, "Flight")
		}
	case domain.KindCruise, domain.KindTrain:
		title = strings.TrimSpace(firstNonEmpty(r.Provider, string(r.Kind)) + " " + route)
	case domain.KindTransfer:
		title = firstNonEmpty(route, r.Notes, "Transfer")
	case domain.KindCarRental:
		title = firstNonEmpty(r.Provider, "Rental")
		if r.Origin != "" {
			title += " - " + r.Origin
		}
	default:
		title = firstNonEmpty(r.Provider, r.Destination, r.Notes, "Reservation")
	}
	title = kindIcon[r.Kind] + " " + title
	if r.Status == domain.StatusDelayed && r.DelayMinutes > 0 {
		title += fmt.Sprintf(" (delayed %d min)", r.DelayMinutes)
	}
	return title
}

// Description lists the codes, travelers, and times of a segment. Combined
// segments list travelers under the code of the booking they came from.
func Description(seg domain.SegmentView) string {
	r := seg.Record
	var lines []string
	if r.Provider != "" {
		lines = append(lines, r.Provider)
	}
	switch {
	case seg.Combined && len(seg.Codes) > 0:
		lines = append(lines, "", "Codes: "+strings.Join(seg.Codes, ", "))
	case r.Code != "":
		lines = append(lines, "", "Code: "+r.Code)
	}

	if len(seg.Passengers) > 0 {
		if seg.Combined {
			var order []string
			byCode := map[string][]domain.TaggedPassenger{}
			for _, p := range seg.Passengers {
				code := firstNonEmpty(p.Code, "No code")
				if _, ok := byCode[code]; !ok {
					order = append(order, code)
				}
				byCode[code] = append(byCode[code], p)
			}
			for _, code := range order {
				lines = append(lines, "", "━━━ "+code+" ━━━")
				for _, p := range byCode[code] {
					lines = append(lines, passengerLine(p.Passenger))
				}
			}
		} else {
			lines = append(lines, "", "Passengers:")
			for _, p := range seg.Passengers {
				lines = append(lines, passengerLine(p.Passenger))
			}
		}
	}

	if r.StartTimeKnown {
		lines = append(lines, "", "Departs: "+r.StartAt.Format("2006-01-02 15:04")+" (local time)")
	}
	if r.EndAt != nil && r.EndTimeKnown {
		lines = append(lines, "Arrives: "+r.EndAt.Format("2006-01-02 15:04")+" (local time)")
	}
	if r.Price != "" {
		lines = append(lines, "Price: "+r.Price)
	}
	if r.Notes != "" {
		lines = append(lines, "", r.Notes)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var titleCase = cases.Title(language.Und)

// PassengerName turns "SURNAME/GIVEN NAMES" into "Given Surname".
func PassengerName(raw string) string {
	surname, given, ok := strings.Cut(raw, "/")
	if !ok {
		return titleCase.String(strings.ToLower(strings.TrimSpace(raw)))
	}
	first := ""
	if f := strings.Fields(given); len(f) > 0 {
		first = f[0]
	}
	return strings.TrimSpace(titleCase.String(strings.ToLower(first + " " + strings.TrimSpace(surname))))
}

func passengerLine(p domain.Passenger) string {
	line := "• " + PassengerName(p.Name)
	if p.Seat != "" {
		line += " - " + p.Seat
	}
	if p.Cabin != "" {
		line += " (" + p.Cabin + ")"
	}
	return line
}

func location(r domain.Reservation) string {
	switch r.Kind {
	case domain.KindHotel, domain.KindRestaurant, domain.KindShow, domain.KindActivity:
		return firstNonEmpty(r.Origin, r.Destination)
	}
	return r.Origin
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
