package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

const groupKeyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// KeyFunc generates a fresh trip group key.
type KeyFunc func() (string, error)

// NewGroupKey returns a short random URL-safe key.
func NewGroupKey() (string, error) {
	return gonanoid.Generate(groupKeyAlphabet, 10)
}

// GroupService maintains trip group membership. Every operation runs as one
// owner-locked transaction, so a failure leaves no partial effect.
type GroupService struct {
	tx     repo.Transactor
	newKey KeyFunc
}

// NewGroupService constructs a GroupService. A nil newKey uses NewGroupKey.
func NewGroupService(tx repo.Transactor, newKey KeyFunc) *GroupService {
	if newKey == nil {
		newKey = NewGroupKey
	}
	return &GroupService{tx: tx, newKey: newKey}
}

// Create moves the given records into one fresh group named after its
// principal city. Every id must belong to owner.
func (s *GroupService) Create(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) (domain.GroupKey, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: at least one reservation is required", domain.ErrValidation)
	}

	var key domain.GroupKey
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		members := make([]domain.Reservation, 0, len(ids))
		for _, id := range ids {
			res, err := ownedRecord(ctx, r, owner, id)
			if err != nil {
				return err
			}
			members = append(members, res)
		}
		var err error
		key, err = s.regroup(ctx, r, owner, members)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("service.GroupService.Create: %w", err)
	}
	return key, nil
}

// Merge unions the members of at least two groups under a fresh key. Solo
// keys are accepted. Repeated keys count once.
func (s *GroupService) Merge(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (domain.GroupKey, error) {
	keys = uniqueKeys(keys)
	if len(keys) < 2 {
		return "", fmt.Errorf("service.GroupService.Merge: %w: at least two groups are required", domain.ErrGroupInvariant)
	}

	var key domain.GroupKey
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		var union []domain.Reservation
		for _, k := range keys {
			members, err := groupMembers(ctx, r, owner, k)
			if err != nil {
				return err
			}
			union = append(union, members...)
		}
		var err error
		key, err = s.regroup(ctx, r, owner, union)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("service.GroupService.Merge: %w", err)
	}
	return key, nil
}

// Split partitions a group by reservation code. Records without a code form
// one bucket of their own. A group with a single bucket is left unchanged
// and its key is returned as the only element.
func (s *GroupService) Split(ctx context.Context, owner uuid.UUID, key domain.GroupKey) ([]domain.GroupKey, error) {
	var out []domain.GroupKey
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		members, err := groupMembers(ctx, r, owner, key)
		if err != nil {
			return err
		}
		buckets := bucketByCode(members)
		if len(buckets) < 2 {
			out = []domain.GroupKey{key}
			return nil
		}
		for _, b := range buckets {
			k, err := s.regroup(ctx, r, owner, b)
			if err != nil {
				return err
			}
			out = append(out, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service.GroupService.Split: %w", err)
	}
	return out, nil
}

// Ungroup makes one record solo. Its former siblings keep their group.
func (s *GroupService) Ungroup(ctx context.Context, owner, id uuid.UUID) error {
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		res, err := ownedRecord(ctx, r, owner, id)
		if err != nil {
			return err
		}
		return r.AssignGroup(ctx, owner, []uuid.UUID{id}, nil, TripName([]domain.Reservation{res}))
	})
	if err != nil {
		return fmt.Errorf("service.GroupService.Ungroup: %w", err)
	}
	return nil
}

// Delete removes every member of the group and returns how many were removed.
func (s *GroupService) Delete(ctx context.Context, owner uuid.UUID, key domain.GroupKey) (int64, error) {
	var n int64
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		var err error
		n, err = deleteGroup(ctx, r, owner, key)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("service.GroupService.Delete: %w", err)
	}
	return n, nil
}

// DeleteMany removes several groups in one transaction. An unknown key
// rolls back the whole batch.
func (s *GroupService) DeleteMany(ctx context.Context, owner uuid.UUID, keys []domain.GroupKey) (int64, error) {
	keys = uniqueKeys(keys)
	var total int64
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		for _, k := range keys {
			n, err := deleteGroup(ctx, r, owner, k)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("service.GroupService.DeleteMany: %w", err)
	}
	return total, nil
}

// Rename sets the display name of every member of the group and of no other record.
func (s *GroupService) Rename(ctx context.Context, owner uuid.UUID, key domain.GroupKey, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	err := s.tx.InOwnerTx(ctx, owner, func(r repo.ReservationRepo) error {
		if id, ok := key.Solo(); ok {
			if _, err := ownedRecord(ctx, r, owner, id); err != nil {
				return err
			}
			return r.Rename(ctx, owner, id, name)
		}
		n, err := r.RenameGroup(ctx, owner, key.String(), name)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.GroupService.Rename: %w", err)
	}
	return nil
}

// regroup assigns members to a fresh key with an automatic name.
func (s *GroupService) regroup(ctx context.Context, r repo.ReservationRepo, owner uuid.UUID, members []domain.Reservation) (domain.GroupKey, error) {
	raw, err := s.newKey()
	if err != nil {
		return "", fmt.Errorf("generate group key: %w", err)
	}
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	if err := r.AssignGroup(ctx, owner, ids, &raw, TripName(members)); err != nil {
		return "", err
	}
	return domain.GroupKey(raw), nil
}

// ownedRecord loads a record and hides records of other owners behind ErrNotFound.
func ownedRecord(ctx context.Context, r repo.ReservationRepo, owner, id uuid.UUID) (domain.Reservation, error) {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !res.OwnedBy(owner) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return res, nil
}

// groupMembers resolves a stored or solo key to its members. An unknown key
// is ErrNotFound.
func groupMembers(ctx context.Context, r repo.ReservationRepo, owner uuid.UUID, key domain.GroupKey) ([]domain.Reservation, error) {
	if id, ok := key.Solo(); ok {
		res, err := ownedRecord(ctx, r, owner, id)
		if err != nil {
			return nil, err
		}
		if res.GroupID != nil {
			// The record has since joined a stored group.
			return nil, domain.ErrNotFound
		}
		return []domain.Reservation{res}, nil
	}
	members, err := r.ListByGroup(ctx, owner, key.String())
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domain.ErrNotFound
	}
	return members, nil
}

func deleteGroup(ctx context.Context, r repo.ReservationRepo, owner uuid.UUID, key domain.GroupKey) (int64, error) {
	if id, ok := key.Solo(); ok {
		if _, err := groupMembers(ctx, r, owner, key); err != nil {
			return 0, err
		}
		if err := r.Delete(ctx, owner, id); err != nil {
			return 0, err
		}
		return 1, nil
	}
	n, err := r.DeleteByGroup(ctx, owner, key.String())
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrNotFound
	}
	return n, nil
}

// bucketByCode partitions records by code in order of first appearance.
func bucketByCode(members []domain.Reservation) [][]domain.Reservation {
	var (
		order []string
		byKey = map[string][]domain.Reservation{}
	)
	for _, m := range members {
		if _, ok := byKey[m.Code]; !ok {
			order = append(order, m.Code)
		}
		byKey[m.Code] = append(byKey[m.Code], m)
	}
	out := make([][]domain.Reservation, len(order))
	for i, code := range order {
		out[i] = byKey[code]
	}
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func uniqueKeys(keys []domain.GroupKey) []domain.GroupKey {
	seen := make(map[domain.GroupKey]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
