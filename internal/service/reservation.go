package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

// ReservationService implements single-record operations: interactive
// creation, edits under the permission policy, and status refreshes.
type ReservationService struct {
	reservations repo.ReservationRepo
	tx           repo.Transactor
	detector     *DuplicateDetector
}

// NewReservationService constructs a ReservationService. Reads go through
// reservations; every mutation runs inside an owner-locked transaction.
func NewReservationService(reservations repo.ReservationRepo, tx repo.Transactor, detector *DuplicateDetector) *ReservationService {
	if detector == nil {
		detector = NewDuplicateDetector(DedupStandard)
	}
	return &ReservationService{reservations: reservations, tx: tx, detector: detector}
}

// Create stores a reservation entered by the owner as its own solo trip.
// Returns domain.ErrDuplicate when the owner already has it.
func (s *ReservationService) Create(ctx context.Context, owner uuid.UUID, res domain.Reservation) (domain.Reservation, error) {
	res.OwnerID = &owner
	res.GroupID = nil
	res.Revision = 0
	if res.Source == domain.SourceUnset {
		res.Source = domain.SourceManual
	}
	res.Normalize()
	if err := res.Validate(); err != nil {
		return domain.Reservation{}, err
	}
	if res.TripName == "" {
		res.TripName = TripName([]domain.Reservation{res})
	}

	var created domain.Reservation
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		dup, err := s.detector.IsDuplicate(ctx, r, owner, res)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicate
		}
		created, err = r.Create(ctx, res)
		return err
	})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns one of the owner's reservations. Records of other owners
// are reported as not found.
func (s *ReservationService) GetByID(ctx context.Context, owner, id uuid.UUID) (domain.Reservation, error) {
	res, err := ownedRecord(ctx, s.reservations, owner, id)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.GetByID: %w", err)
	}
	return res, nil
}

// ListPaged returns one page of the owner's reservations ordered by start.
// Always returns a non-nil slice.
func (s *ReservationService) ListPaged(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error) {
	out, total, err := s.reservations.ListByOwnerPaged(ctx, owner, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ReservationService.ListPaged: %w", err)
	}
	if out == nil {
		out = []domain.Reservation{}
	}
	return out, total, nil
}

// Update applies a field edit. Locked flights are rejected with
// domain.ErrForbidden before anything is written.
func (s *ReservationService) Update(ctx context.Context, owner, id uuid.UUID, edit domain.ReservationEdit) (domain.Reservation, error) {
	var updated domain.Reservation
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		res, err := ownedRecord(ctx, r, owner, id)
		if err != nil {
			return err
		}
		if !res.Editable() {
			return fmt.Errorf("%w: reservation is locked to its imported data", domain.ErrForbidden)
		}
		edit.Apply(&res)
		res.Normalize()
		if err := res.Validate(); err != nil {
			return err
		}
		res.Revision++
		updated, err = r.Update(ctx, res)
		return err
	})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a single reservation under the same policy as Update.
// Locked records can still go away through group deletion.
func (s *ReservationService) Delete(ctx context.Context, owner, id uuid.UUID) error {
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		res, err := ownedRecord(ctx, r, owner, id)
		if err != nil {
			return err
		}
		if !res.Editable() {
			return fmt.Errorf("%w: reservation is locked; delete its trip instead", domain.ErrForbidden)
		}
		return r.Delete(ctx, owner, id)
	})
	if err != nil {
		return fmt.Errorf("service.ReservationService.Delete: %w", err)
	}
	return nil
}

// ApplyStatus records an operational status refresh. It is allowed on
// locked records and bumps the revision so calendar clients pick it up.
func (s *ReservationService) ApplyStatus(ctx context.Context, owner, id uuid.UUID, upd domain.StatusUpdate) (domain.Reservation, error) {
	if !upd.Status.Valid() {
		return domain.Reservation{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, upd.Status)
	}
	if upd.DelayMinutes < 0 {
		return domain.Reservation{}, fmt.Errorf("%w: delay must not be negative", domain.ErrValidation)
	}

	var updated domain.Reservation
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		res, err := ownedRecord(ctx, r, owner, id)
		if err != nil {
			return err
		}
		if res.Status == upd.Status && res.DelayMinutes == upd.DelayMinutes {
			updated = res
			return nil
		}
		res.Status, res.DelayMinutes = upd.Status, upd.DelayMinutes
		res.Revision++
		updated, err = r.Update(ctx, res)
		return err
	})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("service.ReservationService.ApplyStatus: %w", err)
	}
	return updated, nil
}
