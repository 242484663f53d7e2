package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/itinerary/internal/domain"
)

// pgUniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// UserRepo defines the persistence operations for user profiles.
type UserRepo interface {
	// Create inserts a user. Returns domain.ErrValidation when the email is taken.
	Create(ctx context.Context, u domain.User) (domain.User, error)

	// GetByID returns domain.ErrNotFound when the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)

	// GetByCalendarToken resolves the unguessable feed token to its owner.
	GetByCalendarToken(ctx context.Context, token string) (domain.User, error)

	// UpdateProfile overwrites the editable profile fields.
	UpdateProfile(ctx context.Context, u domain.User) (domain.User, error)

	// SetCalendarToken replaces the feed token, invalidating the old URL.
	SetCalendarToken(ctx context.Context, id uuid.UUID, token string) (domain.User, error)
}

type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo backed by the provided db connection.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

const userColumns = `
	id, email, display_name, traveler_surname, traveler_given_names,
	combine_segments, show_trip_span, calendar_token, created_at, updated_at`

func (r *pgUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	q := `
		INSERT INTO users (email, display_name, traveler_surname, traveler_given_names,
		                   combine_segments, show_trip_span, calendar_token)
		VALUES (@email, @display_name, @traveler_surname, @traveler_given_names,
		        @combine_segments, @show_trip_span, @calendar_token)
		RETURNING` + userColumns

	args := pgx.NamedArgs{
		"email":                u.Email,
		"display_name":         u.DisplayName,
		"traveler_surname":     u.TravelerSurname,
		"traveler_given_names": u.TravelerGivenNames,
		"combine_segments":     u.CombineSegments,
		"show_trip_span":       u.ShowTripSpan,
		"calendar_token":       u.CalendarToken,
	}

	result, err := scanUser(r.db.QueryRow(ctx, q, args))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.User{}, fmt.Errorf("repo.UserRepo.Create: %w: email %q already registered", domain.ErrValidation, u.Email)
		}
		return domain.User{}, fmt.Errorf("repo.UserRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE id = @id`

	result, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgUserRepo) GetByCalendarToken(ctx context.Context, token string) (domain.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE calendar_token = @token`

	result, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"token": token}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByCalendarToken: %w", err)
	}
	return result, nil
}

func (r *pgUserRepo) UpdateProfile(ctx context.Context, u domain.User) (domain.User, error) {
	q := `
		UPDATE users
		SET display_name         = @display_name,
		    traveler_surname     = @traveler_surname,
		    traveler_given_names = @traveler_given_names,
		    combine_segments     = @combine_segments,
		    show_trip_span       = @show_trip_span,
		    updated_at           = now()
		WHERE id = @id
		RETURNING` + userColumns

	args := pgx.NamedArgs{
		"id":                   u.ID,
		"display_name":         u.DisplayName,
		"traveler_surname":     u.TravelerSurname,
		"traveler_given_names": u.TravelerGivenNames,
		"combine_segments":     u.CombineSegments,
		"show_trip_span":       u.ShowTripSpan,
	}

	result, err := scanUser(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.UpdateProfile: %w", err)
	}
	return result, nil
}

func (r *pgUserRepo) SetCalendarToken(ctx context.Context, id uuid.UUID, token string) (domain.User, error) {
	q := `
		UPDATE users
		SET calendar_token = @token, updated_at = now()
		WHERE id = @id
		RETURNING` + userColumns

	result, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "token": token}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.SetCalendarToken: %w", err)
	}
	return result, nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u  domain.User
		id pgtype.UUID
	)
	err := s.Scan(
		&id, &u.Email, &u.DisplayName, &u.TravelerSurname, &u.TravelerGivenNames,
		&u.CombineSegments, &u.ShowTripSpan, &u.CalendarToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	u.ID = uuid.UUID(id.Bytes)
	return u, nil
}
