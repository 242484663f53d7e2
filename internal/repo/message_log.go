package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageLogRepo remembers which mailbox messages have already been ingested
// for an owner so a re-scan never extracts the same message twice.
type MessageLogRepo interface {
	// Processed returns the subset of ids already recorded for owner.
	Processed(ctx context.Context, owner uuid.UUID, ids []string) (map[string]bool, error)

	// MarkProcessed records a message id. Recording it twice is a no-op.
	MarkProcessed(ctx context.Context, owner uuid.UUID, id string) error
}

type pgMessageLogRepo struct {
	db db
}

// NewMessageLogRepo constructs a MessageLogRepo backed by the provided db connection.
func NewMessageLogRepo(db db) MessageLogRepo {
	return &pgMessageLogRepo{db: db}
}

func (r *pgMessageLogRepo) Processed(ctx context.Context, owner uuid.UUID, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const q = `
		SELECT message_id FROM processed_messages
		WHERE owner_id = @owner AND message_id = ANY(@ids)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"owner": owner, "ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.MessageLogRepo.Processed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo.MessageLogRepo.Processed: scan: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.MessageLogRepo.Processed: rows: %w", err)
	}
	return out, nil
}

func (r *pgMessageLogRepo) MarkProcessed(ctx context.Context, owner uuid.UUID, id string) error {
	const q = `
		INSERT INTO processed_messages (owner_id, message_id)
		VALUES (@owner, @id)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"owner": owner, "id": id}); err != nil {
		return fmt.Errorf("repo.MessageLogRepo.MarkProcessed: %w", err)
	}
	return nil
}
