// Package domain contains the core data types for the itinerary service:
// reservations, trip groups, user profiles, and the presentation values the
// view builder produces. It carries no storage or transport concerns.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the tagged variant of a reservation. It decides which payload keys
// feed the core fields (see fields.go) and how the record renders.
type Kind string

const (
	KindFlight     Kind = "flight"
	KindHotel      Kind = "hotel"
	KindCruise     Kind = "cruise"
	KindCarRental  Kind = "car_rental"
	KindRestaurant Kind = "restaurant"
	KindShow       Kind = "show"
	KindActivity   Kind = "activity"
	KindTrain      Kind = "train"
	KindTransfer   Kind = "transfer"
)

// kindAliases maps the names extraction output and legacy rows use to a Kind.
var kindAliases = map[string]Kind{
	"flight":      KindFlight,
	"vuelo":       KindFlight,
	"hotel":       KindHotel,
	"cruise":      KindCruise,
	"crucero":     KindCruise,
	"barco":       KindCruise,
	"ferry":       KindCruise,
	"car_rental":  KindCarRental,
	"car":         KindCarRental,
	"auto":        KindCarRental,
	"restaurant":  KindRestaurant,
	"restaurante": KindRestaurant,
	"show":        KindShow,
	"espectaculo": KindShow,
	"activity":    KindActivity,
	"actividad":   KindActivity,
	"train":       KindTrain,
	"tren":        KindTrain,
	"transfer":    KindTransfer,
}

// ParseKind resolves a kind name. An empty name is a flight, which is what
// every legacy record without a type was.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindFlight, nil
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown reservation kind %q", ErrValidation, s)
}

// Source records where a reservation came from. It governs the edit policy.
type Source string

const (
	SourceUnset          Source = "" // legacy rows
	SourceManual         Source = "manual"
	SourcePDFUpload      Source = "pdf_upload"
	SourceEmailAutomatic Source = "email_automatic"
	SourceOtherAutomatic Source = "other_automatic"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceUnset, SourceManual, SourcePDFUpload, SourceEmailAutomatic, SourceOtherAutomatic:
		return true
	}
	return false
}

// Status is the operational state of a reservation, refreshed from outside.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusDelayed   Status = "delayed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusConfirmed || s == StatusDelayed || s == StatusCancelled
}

// Passenger is one traveler on a reservation. Name is usually in airline
// form, "SURNAME/GIVEN NAMES".
type Passenger struct {
	Name           string `json:"name"`
	Seat           string `json:"seat,omitempty"`
	Cabin          string `json:"cabin,omitempty"`
	LoyaltyProgram string `json:"loyalty_program,omitempty"`
}

// Reservation is a single segment: one flight, one hotel stay, one dinner.
//
// StartAt and EndAt are wall-clock values stored without a zone; the
// StartTimeKnown/EndTimeKnown flags say whether the time of day came from
// the document or is just midnight of a date-only value.
type Reservation struct {
	ID      uuid.UUID
	OwnerID *uuid.UUID // nil only for imports not yet assigned to a user
	Kind    Kind

	Origin         string
	Destination    string
	StartAt        time.Time
	StartTimeKnown bool
	EndAt          *time.Time
	EndTimeKnown   bool
	Code           string
	AltCodes       []string
	Provider       string
	SegmentNumber  string
	Price          string
	Notes          string
	Passengers     []Passenger

	GroupID  *string // nil when the record is its own solo group
	TripName string
	Source   Source

	Status       Status
	DelayMinutes int
	Revision     int // bumped on every content change; feeds calendar SEQUENCE

	RawPayload Payload

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupKey returns the key of the trip group the record belongs to,
// synthesising a solo key for ungrouped records.
func (r Reservation) GroupKey() GroupKey {
	if r.GroupID != nil && *r.GroupID != "" {
		return GroupKey(*r.GroupID)
	}
	return SoloKey(r.ID)
}

// OwnedBy reports whether the record belongs to the given user.
func (r Reservation) OwnedBy(owner uuid.UUID) bool {
	return r.OwnerID != nil && *r.OwnerID == owner
}

// Arrival returns the end of the segment when known, otherwise its start.
func (r Reservation) Arrival() time.Time {
	if r.EndAt != nil {
		return *r.EndAt
	}
	return r.StartAt
}

// Codes returns the primary code followed by the alternative codes, skipping blanks.
func (r Reservation) Codes() []string {
	var out []string
	if r.Code != "" {
		out = append(out, r.Code)
	}
	for _, c := range r.AltCodes {
		if c != "" && c != r.Code {
			out = append(out, c)
		}
	}
	return out
}

// Normalize canonicalises identifiers so that equality checks in the
// duplicate detector are exact: codes and segment numbers are upper-cased
// with inner spaces removed, places have their spaces collapsed, other
// free-text fields are trimmed.
func (r *Reservation) Normalize() {
	r.Code = canonicalCode(r.Code)
	r.SegmentNumber = canonicalCode(r.SegmentNumber)
	alt := r.AltCodes[:0:0]
	for _, c := range r.AltCodes {
		if c = canonicalCode(c); c != "" && c != r.Code {
			alt = append(alt, c)
		}
	}
	r.AltCodes = alt
	r.Origin = collapseSpaces(r.Origin)
	r.Destination = collapseSpaces(r.Destination)
	r.Provider = strings.TrimSpace(r.Provider)
	r.TripName = strings.TrimSpace(r.TripName)
	if r.Status == "" {
		r.Status = StatusConfirmed
	}
}

// Validate checks the record invariants: a known kind and source, a start
// date, and an end that does not precede the start. When either side lacks
// a time of day only the dates are compared.
func (r Reservation) Validate() error {
	if _, ok := kindFields[r.Kind]; !ok {
		return fmt.Errorf("%w: unknown reservation kind %q", ErrValidation, r.Kind)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, r.Source)
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, r.Status)
	}
	if r.StartAt.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if r.EndAt != nil {
		if r.StartTimeKnown && r.EndTimeKnown {
			if r.EndAt.Before(r.StartAt) {
				return fmt.Errorf("%w: end must not precede start", ErrValidation)
			}
		} else if dateOf(*r.EndAt).Before(dateOf(r.StartAt)) {
			return fmt.Errorf("%w: end date must not precede start date", ErrValidation)
		}
	}
	if r.DelayMinutes < 0 {
		return fmt.Errorf("%w: delay must not be negative", ErrValidation)
	}
	return nil
}

// Fingerprint is the fallback duplicate key: the same segment number on
// the same day between the same two places. Places are upper-cased so
// "eze" and "EZE" are one airport.
type Fingerprint struct {
	SegmentNumber string
	Date          time.Time // midnight of the start date
	Origin        string
	Destination   string
}

// Fingerprint returns the record's fallback key. ok is false when any of
// the four parts is missing, in which case the record can never match by
// content.
func (r Reservation) Fingerprint() (fp Fingerprint, ok bool) {
	if r.SegmentNumber == "" || r.StartAt.IsZero() || r.Origin == "" || r.Destination == "" {
		return Fingerprint{}, false
	}
	return Fingerprint{
		SegmentNumber: r.SegmentNumber,
		Date:          dateOf(r.StartAt),
		Origin:        canonicalPlace(r.Origin),
		Destination:   canonicalPlace(r.Destination),
	}, true
}

// ReservationEdit carries a partial update of the editable core fields.
// Nil pointers leave the field untouched.
type ReservationEdit struct {
	Origin        *string
	Destination   *string
	StartAt       *time.Time
	StartTimeSet  *bool
	EndAt         *time.Time
	EndTimeSet    *bool
	ClearEnd      bool
	Code          *string
	Provider      *string
	SegmentNumber *string
	Price         *string
	Notes         *string
	Passengers    []Passenger
}

// Apply writes the edit onto r. It does not validate.
func (e ReservationEdit) Apply(r *Reservation) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&r.Origin, e.Origin)
	setString(&r.Destination, e.Destination)
	setString(&r.Code, e.Code)
	setString(&r.Provider, e.Provider)
	setString(&r.SegmentNumber, e.SegmentNumber)
	setString(&r.Price, e.Price)
	setString(&r.Notes, e.Notes)
	if e.StartAt != nil {
		r.StartAt = *e.StartAt
	}
	if e.StartTimeSet != nil {
		r.StartTimeKnown = *e.StartTimeSet
	}
	if e.ClearEnd {
		r.EndAt = nil
		r.EndTimeKnown = false
	} else if e.EndAt != nil {
		end := *e.EndAt
		r.EndAt = &end
	}
	if e.EndTimeSet != nil {
		r.EndTimeKnown = *e.EndTimeSet
	}
	if e.Passengers != nil {
		r.Passengers = e.Passengers
	}
}

// StatusUpdate is an operational status refresh from an external feed.
type StatusUpdate struct {
	Status       Status
	DelayMinutes int
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func canonicalPlace(s string) string {
	return strings.ToUpper(collapseSpaces(s))
}

func canonicalCode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
