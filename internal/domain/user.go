package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the owner profile. TravelerSurname and TravelerGivenNames drive
// the passenger-name claim heuristic; CombineSegments and ShowTripSpan are
// view preferences.
type User struct {
	ID                 uuid.UUID
	Email              string
	DisplayName        string
	TravelerSurname    string
	TravelerGivenNames string
	CombineSegments    bool
	ShowTripSpan       bool
	CalendarToken      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProfileUpdate carries the editable parts of a profile. Nil pointers are
// left unchanged.
type ProfileUpdate struct {
	DisplayName        *string
	TravelerSurname    *string
	TravelerGivenNames *string
	CombineSegments    *bool
	ShowTripSpan       *bool
}

// Apply writes the update onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.TravelerSurname != nil {
		u.TravelerSurname = *p.TravelerSurname
	}
	if p.TravelerGivenNames != nil {
		u.TravelerGivenNames = *p.TravelerGivenNames
	}
	if p.CombineSegments != nil {
		u.CombineSegments = *p.CombineSegments
	}
	if p.ShowTripSpan != nil {
		u.ShowTripSpan = *p.ShowTripSpan
	}
}
