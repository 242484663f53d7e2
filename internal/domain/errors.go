package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// reservation, user, or trip group does not exist for the caller.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. a reservation with no usable start date, end before start).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when a mutation is rejected by the edit policy,
// such as a field edit on a locked flight.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrGroupInvariant is returned when a grouping operation would break group
// membership rules, e.g. merging fewer than two groups.
// Handlers should map this to HTTP 409.
var ErrGroupInvariant = errors.New("group invariant violated")

// ErrDuplicate is returned to interactive callers when a new reservation is
// already present for the owner. Automated pipelines never see it; they
// count the duplicate and move on.
var ErrDuplicate = errors.New("duplicate reservation")
