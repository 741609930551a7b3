package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/google/uuid"
)

type auditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) approval.AuditRepository {
	return &auditRepository{db: db}
}

// ListByRequest implements approval.AuditRepository.
func (a *auditRepository) ListByRequest(ctx context.Context, requestID string) ([]approval.AuditEntry, error) {
	q := GetQuerier(ctx, a.db)

	entries := []approval.AuditEntry{}
	if _, err := uuid.Parse(requestID); err != nil {
		return entries, nil
	}

	rows, err := q.Query(ctx, `
		SELECT id::text, request_id::text, action, actor_id::text, from_state, to_state, comment, created_at
		FROM approval_audit_entries
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e          approval.AuditEntry
			action, to string
			from       *string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &action, &e.ActorID, &from, &to, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = approval.AuditAction(action)
		e.ToState = approval.State(to)
		if from != nil {
			s := approval.State(*from)
			e.FromState = &s
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
