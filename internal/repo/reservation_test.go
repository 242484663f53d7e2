package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
	"github.com/pkordes/itinerary/testutil"
)

// newTestTx opens a transaction that is rolled back when the test ends.
func newTestTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// seedUser inserts an owner so reservation rows satisfy the foreign key.
func seedUser(t *testing.T, tx pgx.Tx) domain.User {
	t.Helper()
	u, err := repo.NewUserRepo(tx).Create(context.Background(), domain.User{
		Email:           uuid.NewString() + "@example.com",
		TravelerSurname: "PEREZ",
		CalendarToken:   uuid.NewString(),
		CombineSegments: true,
		ShowTripSpan:    true,
	})
	require.NoError(t, err)
	return u
}

func flightFixture(owner uuid.UUID) domain.Reservation {
	end := time.Date(2026, 11, 3, 13, 40, 0, 0, time.UTC)
	return domain.Reservation{
		OwnerID:        &owner,
		Kind:           domain.KindFlight,
		Origin:         "EZE",
		Destination:    "PTY",
		StartAt:        time.Date(2026, 11, 3, 7, 15, 0, 0, time.UTC),
		StartTimeKnown: true,
		EndAt:          &end,
		EndTimeKnown:   true,
		Code:           "ABC123",
		AltCodes:       []string{"XYZ789"},
		Provider:       "Copa",
		SegmentNumber:  "CM702",
		Passengers:     []domain.Passenger{{Name: "PEREZ/JUAN", Seat: "12A"}},
		Source:         domain.SourcePDFUpload,
		Status:         domain.StatusConfirmed,
		RawPayload:     domain.Payload{"tipo": "vuelo"},
	}
}

func TestReservationRepo_CreateAndGet(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	in := flightFixture(owner.ID)
	created, err := r.Create(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Nil(t, created.GroupID)
	assert.Equal(t, domain.SoloKey(created.ID), created.GroupKey())

	got, err := r.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.OwnedBy(owner.ID))
	assert.Equal(t, domain.KindFlight, got.Kind)
	assert.True(t, got.StartAt.Equal(in.StartAt))
	require.NotNil(t, got.EndAt)
	assert.True(t, got.EndAt.Equal(*in.EndAt))
	assert.Equal(t, []string{"XYZ789"}, got.AltCodes)
	assert.Equal(t, in.Passengers, got.Passengers)
	assert.Equal(t, "vuelo", got.RawPayload["tipo"])
}

func TestReservationRepo_GetByID_NotFound(t *testing.T) {
	tx := newTestTx(t)
	_, err := repo.NewReservationRepo(tx).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReservationRepo_FindByCodes_MatchesAltCodes(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	created, err := r.Create(ctx, flightFixture(owner.ID))
	require.NoError(t, err)

	got, err := r.FindByCodes(ctx, owner.ID, []string{"XYZ789"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)

	other := seedUser(t, tx)
	got, err = r.FindByCodes(ctx, other.ID, []string{"ABC123"})
	require.NoError(t, err)
	assert.Empty(t, got, "codes are scoped to the owner")
}

func TestReservationRepo_FindByFingerprint(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	created, err := r.Create(ctx, flightFixture(owner.ID))
	require.NoError(t, err)

	fp, ok := created.Fingerprint()
	require.True(t, ok)
	got, err := r.FindByFingerprint(ctx, owner.ID, fp)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
}

func TestReservationRepo_FindByFingerprint_PlacesIgnoreCase(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	res := flightFixture(owner.ID)
	res.Origin, res.Destination = "eze", "pty"
	created, err := r.Create(ctx, res)
	require.NoError(t, err)

	fp, ok := created.Fingerprint()
	require.True(t, ok)
	got, err := r.FindByFingerprint(ctx, owner.ID, fp)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
}

func TestReservationRepo_AssignGroupAndRename(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	a, err := r.Create(ctx, flightFixture(owner.ID))
	require.NoError(t, err)
	second := flightFixture(owner.ID)
	second.Code, second.AltCodes = "DEF456", nil
	b, err := r.Create(ctx, second)
	require.NoError(t, err)

	key := "k1"
	require.NoError(t, r.AssignGroup(ctx, owner.ID, []uuid.UUID{a.ID, b.ID}, &key, "Trip to Panama"))

	members, err := r.ListByGroup(ctx, owner.ID, key)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	n, err := r.RenameGroup(ctx, owner.ID, key, "Holidays")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Holidays", got.TripName)
}

func TestReservationRepo_AssignGroup_ForeignRecord(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	stranger := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	theirs, err := r.Create(ctx, flightFixture(stranger.ID))
	require.NoError(t, err)

	key := "k2"
	err = r.AssignGroup(ctx, owner.ID, []uuid.UUID{theirs.ID}, &key, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReservationRepo_Update_KeepsGroup(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	created, err := r.Create(ctx, flightFixture(owner.ID))
	require.NoError(t, err)
	key := "k3"
	require.NoError(t, r.AssignGroup(ctx, owner.ID, []uuid.UUID{created.ID}, &key, "Trip"))

	created.Notes = "window seat"
	created.Revision = 1
	updated, err := r.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "window seat", updated.Notes)
	assert.Equal(t, 1, updated.Revision)
	require.NotNil(t, updated.GroupID)
	assert.Equal(t, key, *updated.GroupID)
}

func TestReservationRepo_Delete(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	created, err := r.Create(ctx, flightFixture(owner.ID))
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, owner.ID, created.ID))
	assert.ErrorIs(t, r.Delete(ctx, owner.ID, created.ID), domain.ErrNotFound)
}

func TestReservationRepo_ListByOwnerPaged(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f := flightFixture(owner.ID)
		f.Code, f.AltCodes = "", nil
		f.StartAt = f.StartAt.AddDate(0, 0, i)
		f.EndAt = nil
		_, err := r.Create(ctx, f)
		require.NoError(t, err)
	}

	pageNo, limit := 2, 2
	page, total, err := r.ListByOwnerPaged(ctx, owner.ID, domain.NewPaginationParams(&pageNo, &limit))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, 5, page[0].StartAt.Day())
}

func TestReservationRepo_ListPassengerCandidates(t *testing.T) {
	tx := newTestTx(t)
	owner := seedUser(t, tx)
	friend := seedUser(t, tx)
	r := repo.NewReservationRepo(tx)
	ctx := context.Background()

	_, err := r.Create(ctx, flightFixture(friend.ID))
	require.NoError(t, err)

	got, err := r.ListPassengerCandidates(ctx, owner.ID, "Pérez")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].OwnedBy(friend.ID))

	got, err = r.ListPassengerCandidates(ctx, friend.ID, "PEREZ")
	require.NoError(t, err)
	assert.Empty(t, got, "own records are not candidates")
}
