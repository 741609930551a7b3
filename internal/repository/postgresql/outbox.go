package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// enqueueOutbox writes entry on q, normally the transaction of the approving
// transition. A second entry for the same request returns the stored one.
func enqueueOutbox(ctx context.Context, q database.Querier, entry approval.OutboxEntry) (approval.OutboxEntry, error) {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return approval.OutboxEntry{}, fmt.Errorf("failed to generate outbox id: %w", err)
		}
		entry.ID = id.String()
	}

	err := q.QueryRow(ctx, `
		INSERT INTO approval_outbox (id, request_id, type, requester_id, payload, decided_by, decided_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING created_at
	`,
		entry.ID,
		entry.RequestID,
		string(entry.Type),
		entry.RequesterID,
		string(entry.Payload),
		entry.DecidedBy,
		entry.DecidedAt,
	).Scan(&entry.CreatedAt)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return approval.OutboxEntry{}, fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}

	var (
		existing approval.OutboxEntry
		typ      string
		payload  []byte
	)
	err = q.QueryRow(ctx, `
		SELECT id::text, request_id::text, type, requester_id::text, payload, decided_by::text, decided_at, created_at
		FROM approval_outbox
		WHERE request_id = $1
	`, entry.RequestID).Scan(
		&existing.ID,
		&existing.RequestID,
		&typ,
		&existing.RequesterID,
		&payload,
		&existing.DecidedBy,
		&existing.DecidedAt,
		&existing.CreatedAt,
	)
	if err != nil {
		return approval.OutboxEntry{}, fmt.Errorf("failed to load outbox entry: %w", err)
	}
	existing.Type = approval.RequestType(typ)
	existing.Payload = payload
	return existing, nil
}
