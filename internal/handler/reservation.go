package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/itinerary/internal/domain"
)

// timeOfDay is the wire format of start_time and end_time.
const timeOfDay = "15:04"

// PassengerBody is one traveler in a request or response.
type PassengerBody struct {
	Name           string `json:"name" validate:"required,max=200"`
	Seat           string `json:"seat,omitempty" validate:"max=16"`
	Cabin          string `json:"cabin,omitempty" validate:"max=64"`
	LoyaltyProgram string `json:"loyalty_program,omitempty" validate:"max=200"`
}

// CreateReservationRequest is the body of POST /reservations.
type CreateReservationRequest struct {
	Kind          string          `json:"kind" validate:"max=32"`
	Origin        string          `json:"origin" validate:"max=200"`
	Destination   string          `json:"destination" validate:"max=200"`
	StartDate     *types.Date     `json:"start_date" validate:"required"`
	StartTime     string          `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndDate       *types.Date     `json:"end_date"`
	EndTime       string          `json:"end_time" validate:"omitempty,datetime=15:04"`
	Code          string          `json:"code" validate:"max=64"`
	Provider      string          `json:"provider" validate:"max=200"`
	SegmentNumber string          `json:"segment_number" validate:"max=64"`
	Price         string          `json:"price" validate:"max=64"`
	Notes         string          `json:"notes" validate:"max=4000"`
	TripName      string          `json:"trip_name" validate:"max=200"`
	Source        string          `json:"source" validate:"omitempty,oneof=manual pdf_upload email_automatic other_automatic"`
	Passengers    []PassengerBody `json:"passengers" validate:"dive"`
}

// UpdateReservationRequest is the body of PATCH /reservations/{id}. Absent
// fields are left unchanged. A time of day is only accepted together with
// its date.
type UpdateReservationRequest struct {
	Origin        *string         `json:"origin" validate:"omitempty,max=200"`
	Destination   *string         `json:"destination" validate:"omitempty,max=200"`
	StartDate     *types.Date     `json:"start_date"`
	StartTime     *string         `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndDate       *types.Date     `json:"end_date"`
	EndTime       *string         `json:"end_time" validate:"omitempty,datetime=15:04"`
	ClearEnd      bool            `json:"clear_end"`
	Code          *string         `json:"code" validate:"omitempty,max=64"`
	Provider      *string         `json:"provider" validate:"omitempty,max=200"`
	SegmentNumber *string         `json:"segment_number" validate:"omitempty,max=64"`
	Price         *string         `json:"price" validate:"omitempty,max=64"`
	Notes         *string         `json:"notes" validate:"omitempty,max=4000"`
	Passengers    []PassengerBody `json:"passengers" validate:"omitempty,dive"`
}

// StatusRequest is the body of PUT /reservations/{id}/status.
type StatusRequest struct {
	Status       string `json:"status" validate:"required,oneof=confirmed delayed cancelled"`
	DelayMinutes int    `json:"delay_minutes" validate:"gte=0"`
}

// ReservationResponse is the wire form of a reservation. Times are wall
// clock at the place of the event; a missing start_time means the document
// only carried a date.
type ReservationResponse struct {
	ID            uuid.UUID       `json:"id"`
	Kind          domain.Kind     `json:"kind"`
	Origin        string          `json:"origin,omitempty"`
	Destination   string          `json:"destination,omitempty"`
	StartDate     types.Date      `json:"start_date"`
	StartTime     *string         `json:"start_time,omitempty"`
	EndDate       *types.Date     `json:"end_date,omitempty"`
	EndTime       *string         `json:"end_time,omitempty"`
	Code          string          `json:"code,omitempty"`
	AltCodes      []string        `json:"alt_codes,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	SegmentNumber string          `json:"segment_number,omitempty"`
	Price         string          `json:"price,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Passengers    []PassengerBody `json:"passengers"`
	GroupKey      domain.GroupKey `json:"group_key"`
	TripName      string          `json:"trip_name,omitempty"`
	Source        domain.Source   `json:"source,omitempty"`
	Status        domain.Status   `json:"status"`
	DelayMinutes  int             `json:"delay_minutes,omitempty"`
	Revision      int             `json:"revision"`
	Editable      bool            `json:"editable"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// ReservationList is the body of GET /reservations.
type ReservationList struct {
	Data       []ReservationResponse `json:"data"`
	Pagination Pagination            `json:"pagination"`
}

// CreateReservation handles POST /reservations.
func (s *Server) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var body CreateReservationRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := requestToReservation(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.reservations.Create(r.Context(), owner(r), res)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationToResponse(created))
}

// ListReservations handles GET /reservations.
// Supports ?page= and ?limit= (defaults: page=1, limit=50, max=200).
func (s *Server) ListReservations(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params := domain.NewPaginationParams(page, limit)

	list, total, err := s.reservations.ListPaged(r.Context(), owner(r), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]ReservationResponse, len(list))
	for i, res := range list {
		data[i] = reservationToResponse(res)
	}
	writeJSON(w, http.StatusOK, ReservationList{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: int(total)},
	})
}

// GetReservation handles GET /reservations/{id}.
func (s *Server) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.reservations.GetByID(r.Context(), owner(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToResponse(res))
}

// UpdateReservation handles PATCH /reservations/{id}.
func (s *Server) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body UpdateReservationRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	edit, err := requestToEdit(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.reservations.Update(r.Context(), owner(r), id, edit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToResponse(updated))
}

// DeleteReservation handles DELETE /reservations/{id}.
func (s *Server) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.reservations.Delete(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateReservationStatus handles PUT /reservations/{id}/status, the entry
// point for operational status feeds.
func (s *Server) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body StatusRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.reservations.ApplyStatus(r.Context(), owner(r), id, domain.StatusUpdate{
		Status:       domain.Status(body.Status),
		DelayMinutes: body.DelayMinutes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToResponse(updated))
}

// UngroupReservation handles DELETE /reservations/{id}/group.
func (s *Server) UngroupReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.groups.Ungroup(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid reservation id", errRequest)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", errRequest, name)
	}
	return &n, nil
}

// wallTime joins a date and an optional "15:04" time of day into a wall
// clock value. known reports whether a time of day was given.
func wallTime(d types.Date, hhmm string) (t time.Time, known bool, err error) {
	y, m, day := d.Time.Date()
	t = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	if hhmm == "" {
		return t, false, nil
	}
	tod, err := time.Parse(timeOfDay, hhmm)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: time must match %s", domain.ErrValidation, timeOfDay)
	}
	return t.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute), true, nil
}

// requestToReservation converts a create body into a domain.Reservation.
func requestToReservation(body CreateReservationRequest) (domain.Reservation, error) {
	kind, err := domain.ParseKind(body.Kind)
	if err != nil {
		return domain.Reservation{}, err
	}
	res := domain.Reservation{
		Kind:          kind,
		Origin:        body.Origin,
		Destination:   body.Destination,
		Code:          body.Code,
		Provider:      body.Provider,
		SegmentNumber: body.SegmentNumber,
		Price:         body.Price,
		Notes:         body.Notes,
		TripName:      body.TripName,
		Source:        domain.Source(body.Source),
		Passengers:    passengersFromBody(body.Passengers),
	}
	res.StartAt, res.StartTimeKnown, err = wallTime(*body.StartDate, body.StartTime)
	if err != nil {
		return domain.Reservation{}, err
	}
	switch {
	case body.EndDate != nil:
		end, known, err := wallTime(*body.EndDate, body.EndTime)
		if err != nil {
			return domain.Reservation{}, err
		}
		res.EndAt, res.EndTimeKnown = &end, known
	case body.EndTime != "":
		return domain.Reservation{}, fmt.Errorf("%w: end_time requires end_date", domain.ErrValidation)
	}
	return res, nil
}

// requestToEdit converts a patch body into a domain.ReservationEdit.
func requestToEdit(body UpdateReservationRequest) (domain.ReservationEdit, error) {
	edit := domain.ReservationEdit{
		Origin:        body.Origin,
		Destination:   body.Destination,
		ClearEnd:      body.ClearEnd,
		Code:          body.Code,
		Provider:      body.Provider,
		SegmentNumber: body.SegmentNumber,
		Price:         body.Price,
		Notes:         body.Notes,
	}
	if body.Passengers != nil {
		edit.Passengers = passengersFromBody(body.Passengers)
	}

	if body.StartDate != nil {
		start, known, err := wallTime(*body.StartDate, deref(body.StartTime))
		if err != nil {
			return domain.ReservationEdit{}, err
		}
		edit.StartAt, edit.StartTimeSet = &start, &known
	} else if body.StartTime != nil {
		return domain.ReservationEdit{}, fmt.Errorf("%w: start_time requires start_date", domain.ErrValidation)
	}

	if body.EndDate != nil && !body.ClearEnd {
		end, known, err := wallTime(*body.EndDate, deref(body.EndTime))
		if err != nil {
			return domain.ReservationEdit{}, err
		}
		edit.EndAt, edit.EndTimeSet = &end, &known
	} else if body.EndTime != nil && !body.ClearEnd {
		return domain.ReservationEdit{}, fmt.Errorf("%w: end_time requires end_date", domain.ErrValidation)
	}
	return edit, nil
}

func passengersFromBody(in []PassengerBody) []domain.Passenger {
	out := make([]domain.Passenger, len(in))
	for i, p := range in {
		out[i] = domain.Passenger{Name: p.Name, Seat: p.Seat, Cabin: p.Cabin, LoyaltyProgram: p.LoyaltyProgram}
	}
	return out
}

func passengersToBody(in []domain.Passenger) []PassengerBody {
	out := make([]PassengerBody, len(in))
	for i, p := range in {
		out[i] = PassengerBody{Name: p.Name, Seat: p.Seat, Cabin: p.Cabin, LoyaltyProgram: p.LoyaltyProgram}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// reservationToResponse converts a domain.Reservation into its wire form.
func reservationToResponse(res domain.Reservation) ReservationResponse {
	out := ReservationResponse{
		ID:            res.ID,
		Kind:          res.Kind,
		Origin:        res.Origin,
		Destination:   res.Destination,
		StartDate:     types.Date{Time: res.StartAt},
		Code:          res.Code,
		AltCodes:      res.AltCodes,
		Provider:      res.Provider,
		SegmentNumber: res.SegmentNumber,
		Price:         res.Price,
		Notes:         res.Notes,
		Passengers:    passengersToBody(res.Passengers),
		GroupKey:      res.GroupKey(),
		TripName:      res.TripName,
		Source:        res.Source,
		Status:        res.Status,
		DelayMinutes:  res.DelayMinutes,
		Revision:      res.Revision,
		Editable:      res.Editable(),
		CreatedAt:     res.CreatedAt,
		UpdatedAt:     res.UpdatedAt,
	}
	if res.StartTimeKnown {
		hhmm := res.StartAt.Format(timeOfDay)
		out.StartTime = &hhmm
	}
	if res.EndAt != nil {
		out.EndDate = &types.Date{Time: *res.EndAt}
		if res.EndTimeKnown {
			hhmm := res.EndAt.Format(timeOfDay)
			out.EndTime = &hhmm
		}
	}
	return out
}
