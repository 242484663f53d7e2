package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
)

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email              string `json:"email" validate:"required,email,max=320"`
	DisplayName        string `json:"display_name" validate:"max=200"`
	TravelerSurname    string `json:"traveler_surname" validate:"max=200"`
	TravelerGivenNames string `json:"traveler_given_names" validate:"max=200"`
	CombineSegments    *bool  `json:"combine_segments"`
	ShowTripSpan       *bool  `json:"show_trip_span"`
}

// UpdateProfileRequest is the body of PATCH /users/me.
type UpdateProfileRequest struct {
	DisplayName        *string `json:"display_name" validate:"omitempty,max=200"`
	TravelerSurname    *string `json:"traveler_surname" validate:"omitempty,max=200"`
	TravelerGivenNames *string `json:"traveler_given_names" validate:"omitempty,max=200"`
	CombineSegments    *bool   `json:"combine_segments"`
	ShowTripSpan       *bool   `json:"show_trip_span"`
}

// UserResponse is the wire form of a profile. CalendarToken is the secret
// path segment of the user's subscription feed.
type UserResponse struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name,omitempty"`
	TravelerSurname    string    `json:"traveler_surname,omitempty"`
	TravelerGivenNames string    `json:"traveler_given_names,omitempty"`
	CombineSegments    bool      `json:"combine_segments"`
	ShowTripSpan       bool      `json:"show_trip_span"`
	CalendarToken      string    `json:"calendar_token"`
	CalendarURL        string    `json:"calendar_url"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreateUser handles POST /users. Both view preferences default to on.
func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body CreateUserRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	u := domain.User{
		Email:              body.Email,
		DisplayName:        body.DisplayName,
		TravelerSurname:    body.TravelerSurname,
		TravelerGivenNames: body.TravelerGivenNames,
		CombineSegments:    true,
		ShowTripSpan:       true,
	}
	if body.CombineSegments != nil {
		u.CombineSegments = *body.CombineSegments
	}
	if body.ShowTripSpan != nil {
		u.ShowTripSpan = *body.ShowTripSpan
	}

	created, err := s.users.Create(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userToResponse(created))
}

// GetMe handles GET /users/me.
func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByID(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(u))
}

// UpdateMe handles PATCH /users/me.
func (s *Server) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var body UpdateProfileRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.UpdateProfile(r.Context(), owner(r), domain.ProfileUpdate{
		DisplayName:        body.DisplayName,
		TravelerSurname:    body.TravelerSurname,
		TravelerGivenNames: body.TravelerGivenNames,
		CombineSegments:    body.CombineSegments,
		ShowTripSpan:       body.ShowTripSpan,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(u))
}

// RotateCalendarToken handles POST /users/me/calendar-token. The previous
// feed URL stops working immediately.
func (s *Server) RotateCalendarToken(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.RotateCalendarToken(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(u))
}

func userToResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		DisplayName:        u.DisplayName,
		TravelerSurname:    u.TravelerSurname,
		TravelerGivenNames: u.TravelerGivenNames,
		CombineSegments:    u.CombineSegments,
		ShowTripSpan:       u.ShowTripSpan,
		CalendarToken:      u.CalendarToken,
		CalendarURL:        "/calendar/" + u.CalendarToken + ".ics",
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}
