package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/itinerary/internal/domain"
)

// CreateGroupRequest is the body of POST /groups.
type CreateGroupRequest struct {
	ReservationIDs []uuid.UUID `json:"reservation_ids" validate:"required,min=1"`
}

// GroupKeysRequest is the body of POST /groups/merge and POST /groups/delete.
type GroupKeysRequest struct {
	GroupKeys []string `json:"group_keys" validate:"required,dive,required"`
}

// RenameGroupRequest is the body of PUT /groups/{key}/name.
type RenameGroupRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// GroupKeyResponse reports the key of a created or merged group.
type GroupKeyResponse struct {
	GroupKey domain.GroupKey `json:"group_key"`
}

// SplitResponse lists the groups a split produced.
type SplitResponse struct {
	GroupKeys []domain.GroupKey `json:"group_keys"`
}

// DeletedResponse reports how many reservations a deletion removed.
type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// TaggedPassengerBody is a passenger on a combined segment, labelled with
// the code of the booking it came from.
type TaggedPassengerBody struct {
	PassengerBody
	Code string `json:"code,omitempty"`
}

// SegmentResponse is one displayed segment.
type SegmentResponse struct {
	ReservationResponse
	Combined         bool                  `json:"combined"`
	SourceIDs        []uuid.UUID           `json:"source_ids,omitempty"`
	Codes            []string              `json:"codes,omitempty"`
	TaggedPassengers []TaggedPassengerBody `json:"tagged_passengers,omitempty"`
	Claimed          bool                  `json:"claimed,omitempty"`
}

// SpanResponse is the whole-trip entry. End is exclusive.
type SpanResponse struct {
	Title string     `json:"title"`
	Start types.Date `json:"start"`
	End   types.Date `json:"end"`
}

// TripResponse is one trip group.
type TripResponse struct {
	Key           domain.GroupKey   `json:"key"`
	Name          string            `json:"name"`
	PrincipalCity string            `json:"principal_city,omitempty"`
	Segments      []SegmentResponse `json:"segments"`
	Span          *SpanResponse     `json:"span,omitempty"`
}

// ItineraryResponse is the body of GET /itinerary.
type ItineraryResponse struct {
	AsOf     time.Time      `json:"as_of"`
	Upcoming []TripResponse `json:"upcoming"`
	Past     []TripResponse `json:"past"`
}

// CreateGroup handles POST /groups.
func (s *Server) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var body CreateGroupRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := s.groups.Create(r.Context(), owner(r), body.ReservationIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, GroupKeyResponse{GroupKey: key})
}

// MergeGroups handles POST /groups/merge.
func (s *Server) MergeGroups(w http.ResponseWriter, r *http.Request) {
	var body GroupKeysRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := s.groups.Merge(r.Context(), owner(r), toKeys(body.GroupKeys))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GroupKeyResponse{GroupKey: key})
}

// DeleteGroups handles POST /groups/delete, removing several trips at once.
func (s *Server) DeleteGroups(w http.ResponseWriter, r *http.Request) {
	var body GroupKeysRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.groups.DeleteMany(r.Context(), owner(r), toKeys(body.GroupKeys))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: n})
}

// GetGroup handles GET /groups/{key}.
func (s *Server) GetGroup(w http.ResponseWriter, r *http.Request) {
	trip, err := s.views.Group(r.Context(), owner(r), pathKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// DeleteGroup handles DELETE /groups/{key}.
func (s *Server) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	n, err := s.groups.Delete(r.Context(), owner(r), pathKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{Deleted: n})
}

// RenameGroup handles PUT /groups/{key}/name.
func (s *Server) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var body RenameGroupRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.groups.Rename(r.Context(), owner(r), pathKey(r), body.Name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SplitGroup handles POST /groups/{key}/split.
func (s *Server) SplitGroup(w http.ResponseWriter, r *http.Request) {
	keys, err := s.groups.Split(r.Context(), owner(r), pathKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SplitResponse{GroupKeys: keys})
}

// GetItinerary handles GET /itinerary. ?as_of= takes an RFC 3339 instant
// and defaults to now.
func (s *Server) GetItinerary(w http.ResponseWriter, r *http.Request) {
	asOf := s.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: as_of must be an RFC 3339 timestamp", errRequest))
			return
		}
		asOf = t
	}

	it, err := s.views.Build(r.Context(), owner(r), asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ItineraryResponse{
		AsOf:     asOf,
		Upcoming: tripsToResponse(it.Upcoming),
		Past:     tripsToResponse(it.Past),
	})
}

// --- mapping helpers --------------------------------------------------------

func pathKey(r *http.Request) domain.GroupKey {
	return domain.GroupKey(chi.URLParam(r, "key"))
}

func toKeys(in []string) []domain.GroupKey {
	out := make([]domain.GroupKey, len(in))
	for i, k := range in {
		out[i] = domain.GroupKey(k)
	}
	return out
}

func tripsToResponse(trips []domain.TripView) []TripResponse {
	out := make([]TripResponse, len(trips))
	for i, t := range trips {
		out[i] = tripToResponse(t)
	}
	return out
}

func tripToResponse(t domain.TripView) TripResponse {
	out := TripResponse{
		Key:           t.Key,
		Name:          t.Name,
		PrincipalCity: t.PrincipalCity,
		Segments:      make([]SegmentResponse, len(t.Segments)),
	}
	for i, seg := range t.Segments {
		out.Segments[i] = segmentToResponse(seg)
	}
	if t.Span != nil {
		out.Span = &SpanResponse{
			Title: t.Span.Title,
			Start: types.Date{Time: t.Span.Start},
			End:   types.Date{Time: t.Span.End},
		}
	}
	return out
}

func segmentToResponse(seg domain.SegmentView) SegmentResponse {
	out := SegmentResponse{
		ReservationResponse: reservationToResponse(seg.Record),
		Combined:            seg.Combined,
		Claimed:             seg.Claimed,
	}
	if seg.Combined {
		out.SourceIDs = seg.SourceIDs
		out.Codes = seg.Codes
		out.TaggedPassengers = make([]TaggedPassengerBody, len(seg.Passengers))
		for i, p := range seg.Passengers {
			out.TaggedPassengers[i] = TaggedPassengerBody{
				PassengerBody: passengersToBody([]domain.Passenger{p.Passenger})[0],
				Code:          p.Code,
			}
		}
	}
	// Views are read-only presentations; a combined or claimed segment is
	// never edited through its synthetic record.
	if seg.Combined || seg.Claimed {
		out.Editable = false
	}
	return out
}
