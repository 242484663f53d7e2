// Package repo contains all database access for the itinerary service.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/namematch"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting it instead of a pool lets the transactor hand repos a live
// transaction and lets integration tests roll everything back.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReservationRepo defines the persistence operations for reservations.
// Every method that takes an owner scopes its query to that owner's rows.
type ReservationRepo interface {
	// Create inserts a reservation and returns the stored row with its
	// generated id and timestamps.
	Create(ctx context.Context, r domain.Reservation) (domain.Reservation, error)

	// GetByID returns a single reservation. Returns domain.ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error)

	// ListByOwner returns all of an owner's reservations ordered by start.
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Reservation, error)

	// ListByOwnerPaged returns one page of an owner's reservations and the total count.
	ListByOwnerPaged(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error)

	// ListByGroup returns the members of a stored group ordered by start.
	ListByGroup(ctx context.Context, owner uuid.UUID, groupID string) ([]domain.Reservation, error)

	// ListPassengerCandidates returns reservations not owned by owner whose
	// passenger index mentions surname. It is a coarse prefilter for the
	// name-matching heuristic.
	ListPassengerCandidates(ctx context.Context, owner uuid.UUID, surname string) ([]domain.Reservation, error)

	// FindByCodes returns the owner's reservations whose code or alternative
	// codes intersect codes.
	FindByCodes(ctx context.Context, owner uuid.UUID, codes []string) ([]domain.Reservation, error)

	// FindByFingerprint returns the owner's reservations matching the
	// fallback tuple exactly.
	FindByFingerprint(ctx context.Context, owner uuid.UUID, fp domain.Fingerprint) ([]domain.Reservation, error)

	// Update overwrites the content fields of a reservation. Grouping fields
	// are left alone; use AssignGroup and RenameGroup for those.
	Update(ctx context.Context, r domain.Reservation) (domain.Reservation, error)

	// AssignGroup moves the given records into groupID (nil makes them solo)
	// and sets their trip name. Returns domain.ErrNotFound unless every id
	// belongs to the owner.
	AssignGroup(ctx context.Context, owner uuid.UUID, ids []uuid.UUID, groupID *string, tripName string) error

	// RenameGroup sets the trip name on every member of a stored group and
	// returns how many rows changed.
	RenameGroup(ctx context.Context, owner uuid.UUID, groupID, name string) (int64, error)

	// Rename sets the trip name of a single record.
	Rename(ctx context.Context, owner, id uuid.UUID, name string) error

	// Delete removes one of the owner's reservations.
	Delete(ctx context.Context, owner, id uuid.UUID) error

	// DeleteByGroup removes every member of a stored group and returns the count.
	DeleteByGroup(ctx context.Context, owner uuid.UUID, groupID string) (int64, error)
}

// pgReservationRepo is the Postgres implementation of ReservationRepo.
type pgReservationRepo struct {
	db db
}

// NewReservationRepo constructs a ReservationRepo backed by the provided db connection.
// In production pass *pgxpool.Pool or a pgx.Tx; in tests pass a rolled-back pgx.Tx.
func NewReservationRepo(db db) ReservationRepo {
	return &pgReservationRepo{db: db}
}

const reservationColumns = `
	id, owner_id, kind, origin, destination, start_at, start_time_known, end_at, end_time_known,
	code, alt_codes, provider, segment_number, price, notes, passengers, group_id, trip_name,
	source, status, delay_minutes, revision, raw_payload, created_at, updated_at`

// Create inserts a new reservation row and returns the full persisted record.
func (r *pgReservationRepo) Create(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	q := `
		INSERT INTO reservations (
			owner_id, kind, origin, destination, start_at, start_time_known, end_at, end_time_known,
			code, alt_codes, provider, segment_number, price, notes, passengers, passenger_index,
			group_id, trip_name, source, status, delay_minutes, revision, raw_payload)
		VALUES (
			@owner_id, @kind, @origin, @destination, @start_at, @start_time_known, @end_at, @end_time_known,
			@code, @alt_codes, @provider, @segment_number, @price, @notes, @passengers, @passenger_index,
			@group_id, @trip_name, @source, @status, @delay_minutes, @revision, @raw_payload)
		RETURNING` + reservationColumns

	args := contentArgs(res)
	args["owner_id"] = res.OwnerID // nil becomes NULL
	args["group_id"] = res.GroupID
	args["trip_name"] = res.TripName

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanReservation(row)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("repo.ReservationRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a reservation by primary key.
func (r *pgReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	q := `SELECT` + reservationColumns + ` FROM reservations WHERE id = @id`

	result, err := scanReservation(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("repo.ReservationRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListByOwner returns every reservation of the owner, earliest first.
func (r *pgReservationRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]domain.Reservation, error) {
	q := `SELECT` + reservationColumns + `
		FROM reservations
		WHERE owner_id = @owner
		ORDER BY start_at, created_at`

	out, err := r.list(ctx, q, pgx.NamedArgs{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.ListByOwner: %w", err)
	}
	return out, nil
}

// ListByOwnerPaged returns one page of the owner's reservations plus the total count.
func (r *pgReservationRepo) ListByOwnerPaged(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Reservation, int64, error) {
	var total int64
	const countQ = `SELECT count(*) FROM reservations WHERE owner_id = @owner`
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"owner": owner}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.ReservationRepo.ListByOwnerPaged: count: %w", err)
	}

	q := `SELECT` + reservationColumns + `
		FROM reservations
		WHERE owner_id = @owner
		ORDER BY start_at, created_at
		LIMIT @limit OFFSET @offset`

	out, err := r.list(ctx, q, pgx.NamedArgs{"owner": owner, "limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.ReservationRepo.ListByOwnerPaged: %w", err)
	}
	return out, total, nil
}

// ListByGroup returns the members of a stored group, earliest first.
func (r *pgReservationRepo) ListByGroup(ctx context.Context, owner uuid.UUID, groupID string) ([]domain.Reservation, error) {
	q := `SELECT` + reservationColumns + `
		FROM reservations
		WHERE owner_id = @owner AND group_id = @group_id
		ORDER BY start_at, created_at`

	out, err := r.list(ctx, q, pgx.NamedArgs{"owner": owner, "group_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.ListByGroup: %w", err)
	}
	return out, nil
}

// ListPassengerCandidates prefilters other owners' reservations by surname.
func (r *pgReservationRepo) ListPassengerCandidates(ctx context.Context, owner uuid.UUID, surname string) ([]domain.Reservation, error) {
	q := `SELECT` + reservationColumns + `
		FROM reservations
		WHERE owner_id IS DISTINCT FROM @owner
		  AND passenger_index LIKE '%' || @surname || '%'
		ORDER BY start_at`

	out, err := r.list(ctx, q, pgx.NamedArgs{"owner": owner, "surname": namematch.Normalize(surname)})
	if err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.ListPassengerCandidates: %w", err)
	}
	return out, nil
}

// FindByCodes matches primary and alternative codes in both directions.
func (r *pgReservationRepo) FindByCodes(ctx context.Context, owner uuid.UUID, codes []string) ([]domain.Reservation, error) {
	q := `SELECT` + reservationColumns + `
		FROM reservations
		WHERE owner_id = @owner
		  AND (code = ANY(@codes) OR alt_codes && @codes)
		ORDER BY start_at`

	out, err := r.list(ctx, q, pgx.NamedArgs{"owner": owner, "codes": codes})
	if err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.FindByCodes: %w", err)
	}
	return out, nil
}

// FindByFingerprint matches (segment number, start date, origin, destination)
// exactly, comparing places upper-cased like domain.Fingerprint.
func (r *pgReservationRepo) FindByFingerprint(ctx context.Context, owner uuid.UUID, fp domain.Fingerprint) ([]domain.Reservation, error) {
	q := `SELECT` + reservationColumns + `
		FROM reservations
		WHERE owner_id = @owner
		  AND segment_number = @segment_number
		  AND start_at::date = @date
		  AND upper(origin) = @origin
		  AND upper(destination) = @destination
		ORDER BY start_at`

	args := pgx.NamedArgs{
		"owner":          owner,
		"segment_number": fp.SegmentNumber,
		"date":           pgtype.Date{Time: fp.Date, Valid: true},
		"origin":         fp.Origin,
		"destination":    fp.Destination,
	}
	out, err := r.list(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.ReservationRepo.FindByFingerprint: %w", err)
	}
	return out, nil
}

// Update overwrites content fields and returns the updated record.
func (r *pgReservationRepo) Update(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	q := `
		UPDATE reservations
		SET kind             = @kind,
		    origin           = @origin,
		    destination      = @destination,
		    start_at         = @start_at,
		    start_time_known = @start_time_known,
		    end_at           = @end_at,
		    end_time_known   = @end_time_known,
		    code             = @code,
		    alt_codes        = @alt_codes,
		    provider         = @provider,
		    segment_number   = @segment_number,
		    price            = @price,
		    notes            = @notes,
		    passengers       = @passengers,
		    passenger_index  = @passenger_index,
		    source           = @source,
		    status           = @status,
		    delay_minutes    = @delay_minutes,
		    revision         = @revision,
		    raw_payload      = @raw_payload,
		    updated_at       = now()
		WHERE id = @id
		RETURNING` + reservationColumns

	args := contentArgs(res)
	args["id"] = res.ID

	result, err := scanReservation(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("repo.ReservationRepo.Update: %w", err)
	}
	return result, nil
}

// AssignGroup moves records between groups. It fails without effect on the
// statement when any id is missing or owned by someone else.
func (r *pgReservationRepo) AssignGroup(ctx context.Context, owner uuid.UUID, ids []uuid.UUID, groupID *string, tripName string) error {
	const q = `
		UPDATE reservations
		SET group_id = @group_id, trip_name = @trip_name, updated_at = now()
		WHERE owner_id = @owner AND id = ANY(@ids)`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner": owner, "ids": ids, "group_id": groupID, "trip_name": tripName})
	if err != nil {
		return fmt.Errorf("repo.ReservationRepo.AssignGroup: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("repo.ReservationRepo.AssignGroup: %w", domain.ErrNotFound)
	}
	return nil
}

// RenameGroup sets the display name on every member of a stored group.
func (r *pgReservationRepo) RenameGroup(ctx context.Context, owner uuid.UUID, groupID, name string) (int64, error) {
	const q = `
		UPDATE reservations
		SET trip_name = @name, updated_at = now()
		WHERE owner_id = @owner AND group_id = @group_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner": owner, "group_id": groupID, "name": name})
	if err != nil {
		return 0, fmt.Errorf("repo.ReservationRepo.RenameGroup: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rename sets the display name of one record.
func (r *pgReservationRepo) Rename(ctx context.Context, owner, id uuid.UUID, name string) error {
	const q = `
		UPDATE reservations
		SET trip_name = @name, updated_at = now()
		WHERE owner_id = @owner AND id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner": owner, "id": id, "name": name})
	if err != nil {
		return fmt.Errorf("repo.ReservationRepo.Rename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ReservationRepo.Rename: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes one reservation.
func (r *pgReservationRepo) Delete(ctx context.Context, owner, id uuid.UUID) error {
	const q = `DELETE FROM reservations WHERE owner_id = @owner AND id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner": owner, "id": id})
	if err != nil {
		return fmt.Errorf("repo.ReservationRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ReservationRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteByGroup removes every member of a stored group.
func (r *pgReservationRepo) DeleteByGroup(ctx context.Context, owner uuid.UUID, groupID string) (int64, error) {
	const q = `DELETE FROM reservations WHERE owner_id = @owner AND group_id = @group_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner": owner, "group_id": groupID})
	if err != nil {
		return 0, fmt.Errorf("repo.ReservationRepo.DeleteByGroup: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgReservationRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// contentArgs builds the named arguments shared by Create and Update.
func contentArgs(res domain.Reservation) pgx.NamedArgs {
	passengers := res.Passengers
	if passengers == nil {
		passengers = []domain.Passenger{}
	}
	names := make([]string, len(passengers))
	for i, p := range passengers {
		names[i] = p.Name
	}
	altCodes := res.AltCodes
	if altCodes == nil {
		altCodes = []string{}
	}
	payload := res.RawPayload
	if payload == nil {
		payload = domain.Payload{}
	}
	status := res.Status
	if status == "" {
		status = domain.StatusConfirmed
	}
	return pgx.NamedArgs{
		"kind":             string(res.Kind),
		"origin":           res.Origin,
		"destination":      res.Destination,
		"start_at":         timestampArg(&res.StartAt),
		"start_time_known": res.StartTimeKnown,
		"end_at":           timestampArg(res.EndAt),
		"end_time_known":   res.EndTimeKnown,
		"code":             res.Code,
		"alt_codes":        altCodes,
		"provider":         res.Provider,
		"segment_number":   res.SegmentNumber,
		"price":            res.Price,
		"notes":            res.Notes,
		"passengers":       passengers,
		"passenger_index":  namematch.Index(names),
		"source":           string(res.Source),
		"status":           string(status),
		"delay_minutes":    res.DelayMinutes,
		"revision":         res.Revision,
		"raw_payload":      payload,
	}
}

// timestampArg encodes a wall-clock time for a `timestamp` column. A nil
// pointer becomes NULL.
func timestampArg(t *time.Time) pgtype.Timestamp {
	if t == nil {
		return pgtype.Timestamp{}
	}
	y, m, d := t.Date()
	wall := time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	return pgtype.Timestamp{Time: wall, Valid: true}
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanReservation
// to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanReservation maps a single database row into a domain.Reservation,
// handling the UUID, nullable owner/end/group, and JSON columns.
func scanReservation(s scanner) (domain.Reservation, error) {
	var (
		res     domain.Reservation
		id      pgtype.UUID
		owner   pgtype.UUID
		kind    string
		start   pgtype.Timestamp
		end     pgtype.Timestamp
		groupID pgtype.Text
		source  string
		status  string
	)

	err := s.Scan(
		&id, &owner, &kind, &res.Origin, &res.Destination, &start, &res.StartTimeKnown, &end, &res.EndTimeKnown,
		&res.Code, &res.AltCodes, &res.Provider, &res.SegmentNumber, &res.Price, &res.Notes, &res.Passengers,
		&groupID, &res.TripName, &source, &status, &res.DelayMinutes, &res.Revision, &res.RawPayload,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrNotFound
		}
		return domain.Reservation{}, err
	}

	res.ID = uuid.UUID(id.Bytes)
	if owner.Valid {
		o := uuid.UUID(owner.Bytes)
		res.OwnerID = &o
	}
	res.Kind = domain.Kind(kind)
	res.Source = domain.Source(source)
	res.Status = domain.Status(status)
	res.StartAt = start.Time
	if end.Valid {
		e := end.Time
		res.EndAt = &e
	}
	if groupID.Valid {
		g := groupID.String
		res.GroupID = &g
	}
	return res, nil
}
