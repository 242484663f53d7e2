package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
)

func grouped(r domain.Reservation, key, name string) domain.Reservation {
	r.ID = uuid.New()
	r.GroupID = &key
	r.TripName = name
	return r
}

func owned(rs ...domain.Reservation) []service.ViewRecord {
	out := make([]service.ViewRecord, len(rs))
	for i, r := range rs {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		out[i] = service.ViewRecord{Reservation: r}
	}
	return out
}

func TestAssemble_PartitionAndOrder(t *testing.T) {
	owner := uuid.New()
	asOf := at(10, 12)

	records := owned(
		grouped(seg(owner, "A", "CM1", "EZE", "PTY", at(12, 7), at(12, 13)), "up2", ""),
		grouped(seg(owner, "B", "CM2", "EZE", "MIA", at(11, 7), at(11, 16)), "up1", ""),
		grouped(seg(owner, "C", "CM3", "EZE", "SCL", at(1, 7), at(1, 9)), "past1", ""),
		grouped(seg(owner, "D", "CM4", "EZE", "LIM", at(5, 7), at(5, 11)), "past2", ""),
		domain.Reservation{Kind: domain.KindHotel}, // no start: dropped
	)

	it := service.Assemble(records, asOf, service.ViewOptions{}, nil)

	require.Len(t, it.Upcoming, 2)
	assert.Equal(t, domain.GroupKey("up1"), it.Upcoming[0].Key)
	assert.Equal(t, domain.GroupKey("up2"), it.Upcoming[1].Key)
	require.Len(t, it.Past, 2)
	assert.Equal(t, domain.GroupKey("past2"), it.Past[0].Key, "most recent past trip first")
	assert.Equal(t, domain.GroupKey("past1"), it.Past[1].Key)
}

func TestAssemble_BoundaryIsUpcoming(t *testing.T) {
	owner := uuid.New()
	r := seg(owner, "A", "CM1", "EZE", "PTY", at(10, 12), at(10, 18))

	it := service.Assemble(owned(r), at(10, 12), service.ViewOptions{}, nil)

	assert.Len(t, it.Upcoming, 1)
	assert.Empty(t, it.Past)
}

func TestAssemble_ComparesWallClockInZone(t *testing.T) {
	owner := uuid.New()
	// Stored 10:00 local. At 12:00 UTC it is 09:00 in Buenos Aires.
	r := seg(owner, "A", "CM1", "EZE", "PTY", at(10, 10), at(10, 16))
	ba := time.FixedZone("ART", -3*60*60)

	it := service.Assemble(owned(r), at(10, 12).In(ba), service.ViewOptions{}, nil)

	assert.Len(t, it.Upcoming, 1)
}

func TestAssemble_NameAndSpan(t *testing.T) {
	owner := uuid.New()
	records := owned(
		grouped(seg(owner, "A", "CM1", "EZE", "PTY", at(3, 7), at(3, 13)), "k", ""),
		grouped(seg(owner, "A", "CM2", "PTY", "BZE", at(8, 10), at(8, 12)), "k", ""),
		grouped(seg(owner, "A", "CM3", "BZE", "EZE", at(10, 22), at(11, 6)), "k", ""),
	)

	it := service.Assemble(records, at(1, 0), service.ViewOptions{ShowTripSpan: true}, nil)

	require.Len(t, it.Upcoming, 1)
	trip := it.Upcoming[0]
	assert.Equal(t, "Trip to Panama", trip.Name)
	assert.Equal(t, "Panama", trip.PrincipalCity)
	require.NotNil(t, trip.Span)
	assert.Equal(t, time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC), trip.Span.Start)
	assert.Equal(t, time.Date(2026, 11, 12, 0, 0, 0, 0, time.UTC), trip.Span.End, "exclusive end after last arrival")
}

func TestAssemble_NoSpanForSoloOrDisabled(t *testing.T) {
	owner := uuid.New()
	a := grouped(seg(owner, "A", "CM1", "EZE", "PTY", at(3, 7), at(3, 13)), "k", "Stored name")
	b := grouped(seg(owner, "A", "CM2", "PTY", "EZE", at(8, 10), at(8, 18)), "k", "Stored name")
	solo := seg(owner, "Z", "CM9", "EZE", "MIA", at(4, 7), at(4, 16))

	it := service.Assemble(owned(a, b, solo), at(1, 0), service.ViewOptions{}, nil)
	require.Len(t, it.Upcoming, 2)
	assert.Nil(t, it.Upcoming[0].Span, "disabled by preference")
	assert.Equal(t, "Stored name", it.Upcoming[0].Name)

	it = service.Assemble(owned(a, b, solo), at(1, 0), service.ViewOptions{ShowTripSpan: true}, nil)
	assert.NotNil(t, it.Upcoming[0].Span)
	assert.Nil(t, it.Upcoming[1].Span, "solo trips never get a span")
}

func TestAssemble_CombinesSameSegment(t *testing.T) {
	me, friend := uuid.New(), uuid.New()
	mine := grouped(seg(me, "ABC123", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)), "k", "")
	mine.Passengers = []domain.Passenger{{Name: "PEREZ/JUAN"}}
	mine.Provider = "Copa"
	theirs := grouped(seg(friend, "QWE456", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)), "k", "")
	theirs.Passengers = []domain.Passenger{{Name: "GOMEZ/ANA"}, {Name: "PEREZ/JUAN"}}
	theirs.Price = "USD 800"
	other := grouped(seg(me, "ABC123", "CM701", "PTY", "EZE", at(9, 7), at(9, 16)), "k", "")

	records := []service.ViewRecord{
		{Reservation: theirs, Claimed: true},
		{Reservation: mine},
		{Reservation: other},
	}

	it := service.Assemble(records, at(1, 0), service.ViewOptions{CombineSegments: true}, nil)

	require.Len(t, it.Upcoming, 1)
	trip := it.Upcoming[0]
	assert.Equal(t, domain.GroupKey("k"), trip.Key)
	require.Len(t, trip.Segments, 2)
	first := trip.Segments[0]
	assert.True(t, first.Combined)
	assert.False(t, first.Claimed)
	assert.ElementsMatch(t, []string{"ABC123", "QWE456"}, first.Codes)
	assert.Len(t, first.Passengers, 3)
	assert.Equal(t, "Copa", first.Record.Provider)
	assert.Equal(t, "USD 800", first.Record.Price, "blanks filled from the other copy")
	assert.Equal(t, mine.ID, first.Record.ID)
}

func TestAssemble_CombineStaysWithinGroup(t *testing.T) {
	owner := uuid.New()
	records := owned(
		grouped(seg(owner, "AAA111", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)), "g1", "Trip A"),
		grouped(seg(owner, "AAA111", "CM703", "PTY", "BZE", at(4, 7), at(4, 9)), "g1", "Trip A"),
		grouped(seg(owner, "BBB222", "CM702", "EZE", "PTY", at(3, 7), at(3, 13)), "g2", "Trip B"),
		grouped(seg(owner, "BBB222", "CM704", "PTY", "MIA", at(5, 7), at(5, 12)), "g2", "Trip B"),
	)

	it := service.Assemble(records, at(1, 0), service.ViewOptions{CombineSegments: true, ShowTripSpan: true}, nil)

	require.Len(t, it.Upcoming, 2)
	for _, trip := range it.Upcoming {
		require.Len(t, trip.Segments, 2, "group %s keeps both legs", trip.Key)
		assert.Equal(t, "CM702", trip.Segments[0].Record.SegmentNumber)
		assert.False(t, trip.Segments[0].Combined)
		assert.NotNil(t, trip.Span)
	}
	assert.Equal(t, domain.GroupKey("g1"), it.Upcoming[0].Key)
	assert.Equal(t, domain.GroupKey("g2"), it.Upcoming[1].Key)
	assert.Equal(t, "CM704", it.Upcoming[1].Segments[1].Record.SegmentNumber)
}

func TestAssemble_ProviderMismatchNotCombined(t *testing.T) {
	owner := uuid.New()
	a := seg(owner, "A1", "CM702", "EZE", "PTY", at(3, 7), at(3, 13))
	a.Provider = "Copa"
	b := seg(owner, "B1", "CM702", "EZE", "PTY", at(3, 7), at(3, 13))
	b.Provider = "Avianca"

	it := service.Assemble(owned(a, b), at(1, 0), service.ViewOptions{CombineSegments: true}, nil)

	require.Len(t, it.Upcoming, 2)
	assert.False(t, it.Upcoming[0].Segments[0].Combined)
}

func TestAssemble_DropCancelled(t *testing.T) {
	owner := uuid.New()
	r := seg(owner, "A1", "CM1", "EZE", "PTY", at(3, 7), at(3, 13))
	r.Status = domain.StatusCancelled

	it := service.Assemble(owned(r), at(1, 0), service.ViewOptions{DropCancelled: true}, nil)

	assert.Empty(t, it.Upcoming)
}

func TestViewBuilder_Build_ClaimsByPassengerName(t *testing.T) {
	me, friend := uuid.New(), uuid.New()
	m := newMemRepo()
	mustCreate(m, seg(me, "A1", "CM1", "EZE", "PTY", at(3, 7), at(3, 13)))
	claimable := seg(friend, "B1", "CM2", "EZE", "MIA", at(5, 7), at(5, 16))
	claimable.Passengers = []domain.Passenger{{Name: "GAMBERG/ANDRES GUILLERMO"}}
	mustCreate(m, claimable)
	stranger := seg(friend, "C1", "CM3", "EZE", "SCL", at(6, 7), at(6, 9))
	stranger.Passengers = []domain.Passenger{{Name: "GAMBERG/MARTA"}}
	mustCreate(m, stranger)

	user := domain.User{ID: me, TravelerSurname: "Gamberg", TravelerGivenNames: "Andrés"}
	b := service.NewViewBuilder(m, staticUsers(user), time.UTC, nil)

	it, err := b.Build(context.Background(), me, at(1, 0))

	require.NoError(t, err)
	require.Len(t, it.Upcoming, 2)
	claimed := it.Upcoming[1].Segments[0]
	assert.True(t, claimed.Claimed)
	assert.Equal(t, "MIA", claimed.Record.Destination)
}

func TestViewBuilder_Build_UnknownUser(t *testing.T) {
	b := service.NewViewBuilder(newMemRepo(), staticUsers(domain.User{ID: uuid.New()}), nil, nil)

	_, err := b.Build(context.Background(), uuid.New(), at(1, 0))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
