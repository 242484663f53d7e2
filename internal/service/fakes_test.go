package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

// ---- in-memory reservation store -------------------------------------------

// memRepo is an in-memory repo.ReservationRepo with the same ownership and
// not-found semantics as the Postgres implementation.
type memRepo struct {
	rows  map[uuid.UUID]domain.Reservation
	clock time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:  map[uuid.UUID]domain.Reservation{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ repo.ReservationRepo = (*memRepo)(nil)

func (m *memRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memRepo) Create(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	r.ID = uuid.New()
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	if r.Status == "" {
		r.Status = domain.StatusConfirmed
	}
	m.rows[r.ID] = r
	return r, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, ok := m.rows[id]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) filter(keep func(domain.Reservation) bool) []domain.Reservation {
	var out []domain.Reservation
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out
}

func (m *memRepo) ListByOwner(_ context.Context, owner uuid.UUID) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool { return r.OwnedBy(owner) }), nil
}

func (m *memRepo) ListByOwnerPaged(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error) {
	all, _ := m.ListByOwner(ctx, owner)
	lo := min(p.Offset(), len(all))
	hi := min(lo+p.Limit, len(all))
	return all[lo:hi], int64(len(all)), nil
}

func (m *memRepo) ListByGroup(_ context.Context, owner uuid.UUID, groupID string) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool {
		return r.OwnedBy(owner) && r.GroupID != nil && *r.GroupID == groupID
	}), nil
}

func (m *memRepo) ListPassengerCandidates(_ context.Context, owner uuid.UUID, _ string) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool { return !r.OwnedBy(owner) && len(r.Passengers) > 0 }), nil
}

func (m *memRepo) FindByCodes(_ context.Context, owner uuid.UUID, codes []string) ([]domain.Reservation, error) {
	want := map[string]bool{}
	for _, c := range codes {
		want[c] = true
	}
	return m.filter(func(r domain.Reservation) bool {
		if !r.OwnedBy(owner) {
			return false
		}
		for _, c := range r.Codes() {
			if want[c] {
				return true
			}
		}
		return false
	}), nil
}

func (m *memRepo) FindByFingerprint(_ context.Context, owner uuid.UUID, fp domain.Fingerprint) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool {
		got, ok := r.Fingerprint()
		return r.OwnedBy(owner) && ok && got.SegmentNumber == fp.SegmentNumber &&
			got.Date.Equal(fp.Date) && got.Origin == fp.Origin && got.Destination == fp.Destination
	}), nil
}

func (m *memRepo) Update(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	old, ok := m.rows[r.ID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	r.GroupID, r.TripName, r.OwnerID, r.CreatedAt = old.GroupID, old.TripName, old.OwnerID, old.CreatedAt
	r.UpdatedAt = m.tick()
	m.rows[r.ID] = r
	return r, nil
}

func (m *memRepo) AssignGroup(_ context.Context, owner uuid.UUID, ids []uuid.UUID, groupID *string, tripName string) error {
	for _, id := range ids {
		if r, ok := m.rows[id]; !ok || !r.OwnedBy(owner) {
			return domain.ErrNotFound
		}
	}
	for _, id := range ids {
		r := m.rows[id]
		if groupID == nil {
			r.GroupID = nil
		} else {
			g := *groupID
			r.GroupID = &g
		}
		r.TripName = tripName
		m.rows[id] = r
	}
	return nil
}

func (m *memRepo) RenameGroup(_ context.Context, owner uuid.UUID, groupID, name string) (int64, error) {
	var n int64
	for id, r := range m.rows {
		if r.OwnedBy(owner) && r.GroupID != nil && *r.GroupID == groupID {
			r.TripName = name
			m.rows[id] = r
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Rename(_ context.Context, owner, id uuid.UUID, name string) error {
	r, ok := m.rows[id]
	if !ok || !r.OwnedBy(owner) {
		return domain.ErrNotFound
	}
	r.TripName = name
	m.rows[id] = r
	return nil
}

func (m *memRepo) Delete(_ context.Context, owner, id uuid.UUID) error {
	r, ok := m.rows[id]
	if !ok || !r.OwnedBy(owner) {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) DeleteByGroup(_ context.Context, owner uuid.UUID, groupID string) (int64, error) {
	var n int64
	for id, r := range m.rows {
		if r.OwnedBy(owner) && r.GroupID != nil && *r.GroupID == groupID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// groupOf returns the key of the stored record id.
func (m *memRepo) groupOf(id uuid.UUID) domain.GroupKey {
	return m.rows[id].GroupKey()
}

// ---- transactor ------------------------------------------------------------

// memTx runs fn against the memRepo and restores a snapshot when fn fails,
// mimicking a rolled-back transaction.
type memTx struct {
	repo  *memRepo
	calls int
}

var _ repo.Transactor = (*memTx)(nil)

func (t *memTx) InOwnerTx(_ context.Context, _ uuid.UUID, fn func(repo.ReservationRepo) error) error {
	t.calls++
	snapshot := make(map[uuid.UUID]domain.Reservation, len(t.repo.rows))
	for k, v := range t.repo.rows {
		snapshot[k] = v
	}
	if err := fn(t.repo); err != nil {
		t.repo.rows = snapshot
		return err
	}
	return nil
}

// ---- user repo mock --------------------------------------------------------

// mockUserRepo is a hand-written test double for repo.UserRepo.
type mockUserRepo struct {
	create             func(ctx context.Context, u domain.User) (domain.User, error)
	getByID            func(ctx context.Context, id uuid.UUID) (domain.User, error)
	getByCalendarToken func(ctx context.Context, token string) (domain.User, error)
	updateProfile      func(ctx context.Context, u domain.User) (domain.User, error)
	setCalendarToken   func(ctx context.Context, id uuid.UUID, token string) (domain.User, error)
}

var _ repo.UserRepo = (*mockUserRepo)(nil)

func (m *mockUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	return m.create(ctx, u)
}
func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return m.getByID(ctx, id)
}
func (m *mockUserRepo) GetByCalendarToken(ctx context.Context, token string) (domain.User, error) {
	return m.getByCalendarToken(ctx, token)
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, u domain.User) (domain.User, error) {
	return m.updateProfile(ctx, u)
}
func (m *mockUserRepo) SetCalendarToken(ctx context.Context, id uuid.UUID, token string) (domain.User, error) {
	return m.setCalendarToken(ctx, id, token)
}

// staticUsers returns a mockUserRepo that serves a single user by id and token.
func staticUsers(u domain.User) *mockUserRepo {
	return &mockUserRepo{
		getByID: func(_ context.Context, id uuid.UUID) (domain.User, error) {
			if id != u.ID {
				return domain.User{}, domain.ErrNotFound
			}
			return u, nil
		},
		getByCalendarToken: func(_ context.Context, token string) (domain.User, error) {
			if token != u.CalendarToken {
				return domain.User{}, domain.ErrNotFound
			}
			return u, nil
		},
	}
}

// ---- fixtures --------------------------------------------------------------

func at(day, hour int) time.Time {
	return time.Date(2026, 11, day, hour, 0, 0, 0, time.UTC)
}

// seg builds an owned flight segment.
func seg(owner uuid.UUID, code, number, from, to string, start, end time.Time) domain.Reservation {
	e := end
	return domain.Reservation{
		OwnerID:        &owner,
		Kind:           domain.KindFlight,
		Origin:         from,
		Destination:    to,
		StartAt:        start,
		StartTimeKnown: true,
		EndAt:          &e,
		EndTimeKnown:   true,
		Code:           code,
		SegmentNumber:  number,
		Source:         domain.SourceEmailAutomatic,
		Status:         domain.StatusConfirmed,
	}
}

func mustCreate(m *memRepo, r domain.Reservation) domain.Reservation {
	out, err := m.Create(context.Background(), r)
	if err != nil {
		panic(err)
	}
	return out
}

// sequentialKeys returns a KeyFunc yielding k1, k2, ...
func sequentialKeys() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("k%d", n), nil
	}
}
