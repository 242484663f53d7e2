package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

const calendarTokenLength = 32

// UserService manages owner profiles and their calendar feed tokens.
type UserService struct {
	users repo.UserRepo
}

// NewUserService constructs a UserService.
func NewUserService(users repo.UserRepo) *UserService {
	return &UserService{users: users}
}

// Create registers a user with a fresh feed token.
func (s *UserService) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid email %q", domain.ErrValidation, u.Email)
	}
	token, err := gonanoid.New(calendarTokenLength)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Create: token: %w", err)
	}
	u.CalendarToken = token

	created, err := s.users.Create(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns a user profile.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.GetByID: %w", err)
	}
	return u, nil
}

// UpdateProfile applies a partial profile update.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, upd domain.ProfileUpdate) (domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.UpdateProfile: %w", err)
	}
	upd.Apply(&u)
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.TravelerSurname = strings.TrimSpace(u.TravelerSurname)
	u.TravelerGivenNames = strings.TrimSpace(u.TravelerGivenNames)

	updated, err := s.users.UpdateProfile(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.UpdateProfile: %w", err)
	}
	return updated, nil
}

// RotateCalendarToken issues a new feed token. The old feed URL stops working.
func (s *UserService) RotateCalendarToken(ctx context.Context, id uuid.UUID) (domain.User, error) {
	token, err := gonanoid.New(calendarTokenLength)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.RotateCalendarToken: %w", err)
	}
	u, err := s.users.SetCalendarToken(ctx, id, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.RotateCalendarToken: %w", err)
	}
	return u, nil
}
