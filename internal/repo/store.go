package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs fn with a ReservationRepo bound to a transaction that
// holds the owner's advisory lock. Concurrent ingestion, grouping, and
// editing for one owner therefore serialize; different owners do not
// contend.
type Transactor interface {
	InOwnerTx(ctx context.Context, owner uuid.UUID, fn func(ReservationRepo) error) error
}

// Store is the pool-backed Transactor.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InOwnerTx commits when fn returns nil and rolls back otherwise.
func (s *Store) InOwnerTx(ctx context.Context, owner uuid.UUID, fn func(ReservationRepo) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return lockOwner(ctx, tx, owner, fn)
	})
	if err != nil {
		return fmt.Errorf("repo.Store.InOwnerTx: %w", err)
	}
	return nil
}

// lockOwner takes the transaction-scoped advisory lock for owner. The lock
// is released automatically at commit or rollback.
func lockOwner(ctx context.Context, tx db, owner uuid.UUID, fn func(ReservationRepo) error) error {
	const q = `SELECT pg_advisory_xact_lock(hashtext(@owner))`
	if _, err := tx.Exec(ctx, q, pgx.NamedArgs{"owner": owner.String()}); err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}
	return fn(NewReservationRepo(tx))
}
