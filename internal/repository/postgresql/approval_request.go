package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `
	id::text, type, requester_id::text, approver_id::text, state, payload,
	comment, submitted_at, decided_at, decided_by::text, created_at, updated_at`

type approvalRequestRepository struct {
	db *database.DB
}

func NewApprovalRequestRepository(db *database.DB) approval.RequestRepository {
	return &approvalRequestRepository{db: db}
}

// Create implements approval.RequestRepository. The request row and its
// creation audit entry commit together.
func (r *approvalRequestRepository) Create(ctx context.Context, request approval.Request, audit approval.AuditEntry) (approval.Request, error) {
	if request.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return approval.Request{}, fmt.Errorf("failed to generate request id: %w", err)
		}
		request.ID = id.String()
	}

	var created approval.Request
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		query := `
			INSERT INTO approval_requests (id, type, requester_id, approver_id, state, payload, comment, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
			RETURNING ` + requestColumns

		var err error
		created, err = scanRequest(q.QueryRow(ctx, query,
			request.ID,
			string(request.Type),
			request.RequesterID,
			request.ApproverID,
			string(request.State),
			string(request.Payload),
			request.Comment,
			request.SubmittedAt,
		))
		if err != nil {
			return fmt.Errorf("failed to insert request: %w", err)
		}

		audit.RequestID = created.ID
		return insertAudit(ctx, q, audit)
	})
	if err != nil {
		return approval.Request{}, err
	}
	return created, nil
}

// GetByID implements approval.RequestRepository.
func (r *approvalRequestRepository) GetByID(ctx context.Context, id string) (approval.Request, error) {
	q := GetQuerier(ctx, r.db)

	if _, err := uuid.Parse(id); err != nil {
		return approval.Request{}, approval.ErrRequestNotFound
	}

	request, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return approval.Request{}, approval.ErrRequestNotFound
		}
		return approval.Request{}, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

// List implements approval.RequestRepository.
func (r *approvalRequestRepository) List(ctx context.Context, filter approval.RequestFilter) ([]approval.Request, int64, error) {
	q := GetQuerier(ctx, r.db)

	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.RequesterID != nil {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", argIdx))
		args = append(args, *filter.RequesterID)
		argIdx++
	}
	if filter.ApproverID != nil {
		conditions = append(conditions, fmt.Sprintf("approver_id = $%d", argIdx))
		args = append(args, *filter.ApproverID)
		argIdx++
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argIdx))
		args = append(args, string(*filter.State))
		argIdx++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*filter.Type))
		argIdx++
	}
	if filter.PendingBefore != nil {
		conditions = append(conditions, fmt.Sprintf("submitted_at < $%d", argIdx))
		args = append(args, *filter.PendingBefore)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM approval_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	orderBy := ` ORDER BY created_at DESC, id DESC`
	if filter.OldestFirst {
		orderBy = ` ORDER BY submitted_at ASC NULLS LAST, id ASC`
	}
	query := `SELECT ` + requestColumns + ` FROM approval_requests` + where + orderBy
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []approval.Request{}
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate requests: %w", err)
	}

	return requests, total, nil
}

// Transition implements approval.RequestRepository. The update only
// matches while the stored state equals t.From, so of two concurrent
// transitions from the same state exactly one commits. The audit row and
// any outbox row share its transaction.
func (r *approvalRequestRepository) Transition(ctx context.Context, t approval.Transition) (approval.Request, error) {
	var updated approval.Request
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		query := `
			UPDATE approval_requests
			SET state        = $3,
			    approver_id  = COALESCE($4, approver_id),
			    submitted_at = COALESCE($5, submitted_at),
			    decided_by   = COALESCE($6, decided_by),
			    decided_at   = COALESCE($7, decided_at),
			    comment      = COALESCE($8, comment),
			    updated_at   = NOW()
			WHERE id = $1 AND state = $2
			RETURNING ` + requestColumns

		var err error
		updated, err = scanRequest(q.QueryRow(ctx, query,
			t.RequestID,
			string(t.From),
			string(t.To),
			t.ApproverID,
			t.SubmittedAt,
			t.DecidedBy,
			t.DecidedAt,
			t.Comment,
		))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to transition request: %w", err)
			}
			var exists bool
			if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM approval_requests WHERE id = $1)`, t.RequestID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check request: %w", err)
			}
			if !exists {
				return approval.ErrRequestNotFound
			}
			return approval.ErrStateConflict
		}

		audit := t.Audit
		audit.RequestID = updated.ID
		if err := insertAudit(ctx, q, audit); err != nil {
			return err
		}

		if t.Outbox == nil {
			return nil
		}
		entry := *t.Outbox
		entry.RequestID = updated.ID
		_, err = enqueueOutbox(ctx, q, entry)
		return err
	})
	if err != nil {
		return approval.Request{}, err
	}
	return updated, nil
}

func scanRequest(row pgx.Row) (approval.Request, error) {
	var (
		req     approval.Request
		typ     string
		state   string
		payload []byte
	)
	err := row.Scan(
		&req.ID,
		&typ,
		&req.RequesterID,
		&req.ApproverID,
		&state,
		&payload,
		&req.Comment,
		&req.SubmittedAt,
		&req.DecidedAt,
		&req.DecidedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return approval.Request{}, err
	}
	req.Type = approval.RequestType(typ)
	req.State = approval.State(state)
	req.Payload = payload
	return req, nil
}

func insertAudit(ctx context.Context, q database.Querier, entry approval.AuditEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate audit id: %w", err)
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var from *string
	if entry.FromState != nil {
		s := string(*entry.FromState)
		from = &s
	}

	_, err := q.Exec(ctx, `
		INSERT INTO approval_audit_entries (id, request_id, action, actor_id, from_state, to_state, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.ID,
		entry.RequestID,
		string(entry.Action),
		entry.ActorID,
		from,
		string(entry.ToState),
		entry.Comment,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
