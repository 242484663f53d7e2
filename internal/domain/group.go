package domain

import (
	"strings"

	"github.com/google/uuid"
)

// GroupKey identifies a trip group. Stored groups use a generated key; an
// ungrouped record is addressed through a synthetic "solo-<record id>" key
// that is never written to the store.
type GroupKey string

const soloPrefix = "solo-"

// SoloKey returns the synthetic group key of an ungrouped record.
func SoloKey(id uuid.UUID) GroupKey {
	return GroupKey(soloPrefix + id.String())
}

// Solo returns the record id behind a solo key. ok is false for stored keys.
func (k GroupKey) Solo() (id uuid.UUID, ok bool) {
	rest, found := strings.CutPrefix(string(k), soloPrefix)
	if !found {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// IsSolo reports whether k is a synthetic solo key.
func (k GroupKey) IsSolo() bool {
	_, ok := k.Solo()
	return ok
}

func (k GroupKey) String() string { return string(k) }
