package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/calendar"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/handler"
	"github.com/pkordes/itinerary/internal/service"
)

// Mocks are test doubles for the handler interfaces.
// Set only the method fields your test needs.

type mockReservations struct {
	create      func(ctx context.Context, owner uuid.UUID, res domain.Reservation) (domain.Reservation, error)
	getByID     func(ctx context.Context, owner, id uuid.UUID) (domain.Reservation, error)
	listPaged   func(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error)
	update      func(ctx context.Context, owner, id uuid.UUID, edit domain.ReservationEdit) (domain.Reservation, error)
	delete      func(ctx context.Context, owner, id uuid.UUID) error
	applyStatus func(ctx context.Context, owner, id uuid.UUID, upd domain.StatusUpdate) (domain.Reservation, error)
}

func (m *mockReservations) Create(ctx context.Context, owner uuid.UUID, res domain.Reservation) (domain.Reservation, error) {
	return m.create(ctx, owner, res)
}
func (m *mockReservations) GetByID(ctx context.Context, owner, id uuid.UUID) (domain.Reservation, error) {
	return m.getByID(ctx, owner, id)
}
func (m *mockReservations) ListPaged(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error) {
	return m.listPaged(ctx, owner, p)
}
func (m *mockReservations) Update(ctx context.Context, owner, id uuid.UUID, edit domain.ReservationEdit) (domain.Reservation, error) {
	return m.update(ctx, owner, id, edit)
}
func (m *mockReservations) Delete(ctx context.Context, owner, id uuid.UUID) error {
	return m.delete(ctx, owner, id)
}
func (m *mockReservations) ApplyStatus(ctx context.Context, owner, id uuid.UUID, upd domain.StatusUpdate) (domain.Reservation, error) {
	return m.applyStatus(ctx, owner, id, upd)
}

type mockGroups struct {
	create     func(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) (domain.GroupKey, error)
	merge      func(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (domain.GroupKey, error)
	split      func(ctx context.Context, owner uuid.UUID, key domain.GroupKey) ([]domain.GroupKey, error)
	ungroup    func(ctx context.Context, owner, id uuid.UUID) error
	delete     func(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (int64, error)
	deleteMany func(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (int64, error)
	rename     func(ctx context.Context, owner uuid.UUID, key domain.GroupKey, name string) error
}

func (m *mockGroups) Create(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) (domain.GroupKey, error) {
	return m.create(ctx, owner, ids)
}
func (m *mockGroups) Merge(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (domain.GroupKey, error) {
	return m.merge(ctx, owner, keys)
}
func (m *mockGroups) Split(ctx context.Context, owner uuid.UUID, key domain.GroupKey) ([]domain.GroupKey, error) {
	return m.split(ctx, owner, key)
}
func (m *mockGroups) Ungroup(ctx context.Context, owner, id uuid.UUID) error {
	return m.ungroup(ctx, owner, id)
}
func (m *mockGroups) Delete(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (int64, error) {
	return m.delete(ctx, owner, key)
}
func (m *mockGroups) DeleteMany(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (int64, error) {
	return m.deleteMany(ctx, owner, keys)
}
func (m *mockGroups) Rename(ctx context.Context, owner uuid.UUID, key domain.GroupKey, name string) error {
	return m.rename(ctx, owner, key, name)
}

type mockViews struct {
	build func(ctx context.Context, owner uuid.UUID, asOf time.Time) (domain.Itinerary, error)
	group func(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (domain.TripView, error)
}

func (m *mockViews) Build(ctx context.Context, owner uuid.UUID, asOf time.Time) (domain.Itinerary, error) {
	return m.build(ctx, owner, asOf)
}
func (m *mockViews) Group(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (domain.TripView, error) {
	return m.group(ctx, owner, key)
}

type mockIngest struct {
	ingest func(ctx context.Context, owner uuid.UUID, doc service.Document) (service.IngestResult, error)
}

func (m *mockIngest) Ingest(ctx context.Context, owner uuid.UUID, doc service.Document) (service.IngestResult, error) {
	return m.ingest(ctx, owner, doc)
}

type mockUsers struct {
	create        func(ctx context.Context, u domain.User) (domain.User, error)
	getByID       func(ctx context.Context, id uuid.UUID) (domain.User, error)
	updateProfile func(ctx context.Context, id uuid.UUID, upd domain.ProfileUpdate) (domain.User, error)
	rotate        func(ctx context.Context, id uuid.UUID) (domain.User, error)
}

func (m *mockUsers) Create(ctx context.Context, u domain.User) (domain.User, error) {
	return m.create(ctx, u)
}
func (m *mockUsers) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return m.getByID(ctx, id)
}
func (m *mockUsers) UpdateProfile(ctx context.Context, id uuid.UUID, upd domain.ProfileUpdate) (domain.User, error) {
	return m.updateProfile(ctx, id, upd)
}
func (m *mockUsers) RotateCalendarToken(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return m.rotate(ctx, id)
}

type mockCalendar struct {
	exportGroup func(ctx context.Context, owner uuid.UUID, key domain.GroupKey, m calendar.Method) (string, string, error)
	feed        func(ctx context.Context, token string) (string, error)
}

func (m *mockCalendar) ExportGroup(ctx context.Context, owner uuid.UUID, key domain.GroupKey, method calendar.Method) (string, string, error) {
	return m.exportGroup(ctx, owner, key, method)
}
func (m *mockCalendar) Feed(ctx context.Context, token string) (string, error) {
	return m.feed(ctx, token)
}

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.ReservationServicer = (*mockReservations)(nil)
	_ handler.GroupServicer       = (*mockGroups)(nil)
	_ handler.ViewServicer        = (*mockViews)(nil)
	_ handler.IngestServicer      = (*mockIngest)(nil)
	_ handler.UserServicer        = (*mockUsers)(nil)
	_ handler.CalendarServicer    = (*mockCalendar)(nil)
)

// ---- helpers ---------------------------------------------------------------

var testOwner = uuid.MustParse("6f1c2a9e-4b3d-4c5e-9f70-1a2b3c4d5e6f")

// newRouter wires a Server from deps the same way main.go does.
func newRouter(d handler.Deps) http.Handler {
	return handler.NewServer(d).Routes()
}

// send performs a request as testOwner. A nil body sends no body; a string
// is sent verbatim; anything else is JSON-encoded.
func send(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, method, path, body)
	req.Header.Set(handler.OwnerHeader, testOwner.String())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func flightFixture() domain.Reservation {
	start := time.Date(2026, 11, 3, 7, 15, 0, 0, time.UTC)
	end := time.Date(2026, 11, 3, 10, 40, 0, 0, time.UTC)
	group := "k1"
	return domain.Reservation{
		ID:             uuid.MustParse("0b9d7e52-7a86-4f0e-8d3b-5c1f2e3a4b5c"),
		OwnerID:        &testOwner,
		Kind:           domain.KindFlight,
		Origin:         "Buenos Aires",
		Destination:    "Panama City",
		StartAt:        start,
		StartTimeKnown: true,
		EndAt:          &end,
		EndTimeKnown:   true,
		Code:           "ABC123",
		Provider:       "Copa",
		SegmentNumber:  "CM702",
		Passengers:     []domain.Passenger{{Name: "GAMBERG/ANDRES", Seat: "12A"}},
		GroupID:        &group,
		TripName:       "Trip to Panama",
		Source:         domain.SourceEmailAutomatic,
		Status:         domain.StatusConfirmed,
		Revision:       2,
		CreatedAt:      time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
	}
}
