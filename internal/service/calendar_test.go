package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/calendar"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
)

type calendarFixture struct {
	user   domain.User
	repo   *memRepo
	writer *calendar.Writer
	svc    *service.CalendarService
}

func newCalendarFixture() calendarFixture {
	user := domain.User{ID: uuid.New(), Email: "ana@example.com", DisplayName: "Ana", CalendarToken: "tok-123", ShowTripSpan: true}
	m := newMemRepo()
	users := staticUsers(user)
	views := service.NewViewBuilder(m, users, time.UTC, nil)
	writer := calendar.NewWriter("itinerary.test", time.UTC)
	now := func() time.Time { return at(2, 0) }
	return calendarFixture{user: user, repo: m, writer: writer, svc: service.NewCalendarService(users, views, writer, now)}
}

func TestCalendarService_Feed(t *testing.T) {
	f := newCalendarFixture()
	key := "trip1"
	out := grouped(seg(f.user.ID, "ABC123", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)), key, "Panama")
	back := grouped(seg(f.user.ID, "ABC123", "CM701", "PTY", "EZE", at(10, 9), at(10, 18)), key, "Panama")
	cancelled := seg(f.user.ID, "DEF456", "CM300", "EZE", "MIA", at(20, 9), at(20, 18))
	cancelled.Status = domain.StatusCancelled
	past := seg(f.user.ID, "OLD111", "CM100", "EZE", "SCL", at(1, 9), at(1, 11))
	f.repo.rows[out.ID] = out
	f.repo.rows[back.ID] = back
	cancelled = mustCreate(f.repo, cancelled)
	past = mustCreate(f.repo, past)

	body, err := f.svc.Feed(context.Background(), "tok-123")

	require.NoError(t, err)
	assert.Contains(t, body, "METHOD:PUBLISH")
	assert.Contains(t, body, f.writer.UID(out))
	assert.Contains(t, body, f.writer.UID(back))
	assert.Contains(t, body, f.writer.SpanUID(domain.GroupKey(key)))
	assert.NotContains(t, body, f.writer.UID(cancelled), "cancelled segments leave the feed")
	assert.NotContains(t, body, f.writer.UID(past), "past segments leave the feed")
}

func TestCalendarService_Feed_UnknownToken(t *testing.T) {
	f := newCalendarFixture()

	_, err := f.svc.Feed(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Feed(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCalendarService_ExportGroup(t *testing.T) {
	f := newCalendarFixture()
	r := mustCreate(f.repo, seg(f.user.ID, "ABC123", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)))
	r.TripName = "Honeymoon"
	f.repo.rows[r.ID] = r

	body, name, err := f.svc.ExportGroup(context.Background(), f.user.ID, r.GroupKey(), calendar.MethodCancel)

	require.NoError(t, err)
	assert.Equal(t, "Honeymoon", name)
	assert.Contains(t, body, "METHOD:CANCEL")
	assert.Contains(t, body, "STATUS:CANCELLED")
	assert.Contains(t, body, f.writer.UID(r))
}

func TestCalendarService_ExportGroup_OtherOwner(t *testing.T) {
	f := newCalendarFixture()
	r := mustCreate(f.repo, seg(uuid.New(), "ABC123", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)))

	_, _, err := f.svc.ExportGroup(context.Background(), f.user.ID, r.GroupKey(), calendar.MethodRequest)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
