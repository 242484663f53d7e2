package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pkordes/itinerary/internal/domain"
)

func TestGroupKey_SoloRoundTrip(t *testing.T) {
	id := uuid.New()
	key := domain.SoloKey(id)

	got, ok := key.Solo()

	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.True(t, key.IsSolo())
}

func TestGroupKey_StoredKeyIsNotSolo(t *testing.T) {
	assert.False(t, domain.GroupKey("k3x9a0b1c2").IsSolo())
	assert.False(t, domain.GroupKey("solo-not-a-uuid").IsSolo())
}

func TestReservation_GroupKey(t *testing.T) {
	id := uuid.New()
	r := domain.Reservation{ID: id}
	assert.Equal(t, domain.SoloKey(id), r.GroupKey())

	g := "k3x9a0b1c2"
	r.GroupID = &g
	assert.Equal(t, domain.GroupKey(g), r.GroupKey())
}
