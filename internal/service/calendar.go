package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/calendar"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

// CalendarService produces iCalendar documents for groups and feeds.
type CalendarService struct {
	users  repo.UserRepo
	views  *ViewBuilder
	writer *calendar.Writer
	now    func() time.Time
}

// NewCalendarService constructs a CalendarService. A nil now uses time.Now.
func NewCalendarService(users repo.UserRepo, views *ViewBuilder, writer *calendar.Writer, now func() time.Time) *CalendarService {
	if now == nil {
		now = time.Now
	}
	return &CalendarService{users: users, views: views, writer: writer, now: now}
}

// ExportGroup renders one of the owner's trips with the given method.
// The returned name is suitable for a download filename.
func (s *CalendarService) ExportGroup(ctx context.Context, owner uuid.UUID, key domain.GroupKey, m calendar.Method) (body, name string, err error) {
	user, err := s.users.GetByID(ctx, owner)
	if err != nil {
		return "", "", fmt.Errorf("service.CalendarService.ExportGroup: %w", err)
	}
	trip, err := s.views.Group(ctx, owner, key)
	if err != nil {
		return "", "", fmt.Errorf("service.CalendarService.ExportGroup: %w", err)
	}
	return s.writer.Export(user, trip, m), trip.Name, nil
}

// Feed renders the subscription calendar behind a feed token: upcoming,
// non-cancelled segments with the user's combine and span preferences.
func (s *CalendarService) Feed(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("service.CalendarService.Feed: %w", domain.ErrNotFound)
	}
	user, err := s.users.GetByCalendarToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("service.CalendarService.Feed: %w", err)
	}
	opts := OptionsFor(user)
	opts.DropCancelled = true
	it, err := s.views.BuildFor(ctx, user, s.now(), opts)
	if err != nil {
		return "", fmt.Errorf("service.CalendarService.Feed: %w", err)
	}
	return s.writer.Feed(user, it.Upcoming), nil
}
