package approval

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/validator"
)

// ========================================
// REQUEST DTOs
// ========================================

type CreateRequestRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (r *CreateRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Type) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type is required",
		})
	} else if !validator.IsInSlice(r.Type, RequestTypes) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: leave, expense, profile_change",
		})
	}

	if len(r.Payload) == 0 || string(r.Payload) == "null" {
		errs = append(errs, validator.ValidationError{
			Field:   "payload",
			Message: "payload is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type DecideRequest struct {
	RequestID string  `json:"-"`
	Outcome   string  `json:"outcome"`
	Comment   *string `json:"comment,omitempty"`
}

// Validate enforces the outcome and the rejection comment policy.
func (r *DecideRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RequestID) {
		errs = append(errs, validator.ValidationError{
			Field:   "request_id",
			Message: "request_id is required",
		})
	}

	switch State(r.Outcome) {
	case StateApproved:
	case StateRejected:
		if r.Comment == nil || validator.IsEmpty(*r.Comment) {
			errs = append(errs, validator.ValidationError{
				Field:   "comment",
				Message: "comment is required when rejecting",
			})
		}
	default:
		errs = append(errs, validator.ValidationError{
			Field:   "outcome",
			Message: "outcome must be one of: approved, rejected",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ListRequestsFilter scopes: "mine" (requested by me), "approvals"
// (awaiting or decided by me), "all" (administrators only).
type ListRequestsFilter struct {
	Scope  string `json:"scope"`
	State  string `json:"state,omitempty"`
	Type   string `json:"type,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

const (
	ScopeMine      = "mine"
	ScopeApprovals = "approvals"
	ScopeAll       = "all"

	DefaultListLimit = 20
	MaxListLimit     = 100
)

func (f *ListRequestsFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Scope == "" {
		f.Scope = ScopeMine
	}
	if !validator.IsInSlice(f.Scope, []string{ScopeMine, ScopeApprovals, ScopeAll}) {
		errs = append(errs, validator.ValidationError{
			Field:   "scope",
			Message: "scope must be one of: mine, approvals, all",
		})
	}
	if f.State != "" && !validator.IsInSlice(f.State, States) {
		errs = append(errs, validator.ValidationError{
			Field:   "state",
			Message: "state must be one of: draft, pending, approved, rejected",
		})
	}
	if f.Type != "" && !validator.IsInSlice(f.Type, RequestTypes) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: leave, expense, profile_change",
		})
	}
	if f.Limit < 0 || f.Limit > MaxListLimit {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be between 1 and " + strconv.Itoa(MaxListLimit),
		})
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "offset",
			Message: "offset must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========================================
// RESPONSE DTOs
// ========================================

type RequestResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	RequesterID string          `json:"requester_id"`
	ApproverID  *string         `json:"approver_id,omitempty"`
	State       string          `json:"state"`
	Payload     json.RawMessage `json:"payload"`
	Comment     *string         `json:"comment,omitempty"`
	SubmittedAt *string         `json:"submitted_at,omitempty"`
	DecidedAt   *string         `json:"decided_at,omitempty"`
	DecidedBy   *string         `json:"decided_by,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type ListRequestsResponse struct {
	Requests []RequestResponse `json:"requests"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type DecisionResponse struct {
	RequestID string  `json:"request_id"`
	NewState  string  `json:"new_state"`
	DecidedBy string  `json:"decided_by"`
	DecidedAt string  `json:"decided_at"`
	Comment   *string `json:"comment,omitempty"`
}

type AuditEntryResponse struct {
	ID        string  `json:"id"`
	RequestID string  `json:"request_id"`
	Action    string  `json:"action"`
	ActorID   string  `json:"actor_id"`
	FromState *string `json:"from_state,omitempty"`
	ToState   string  `json:"to_state"`
	Comment   *string `json:"comment,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func NewRequestResponse(r Request) RequestResponse {
	return RequestResponse{
		ID:          r.ID,
		Type:        string(r.Type),
		RequesterID: r.RequesterID,
		ApproverID:  r.ApproverID,
		State:       string(r.State),
		Payload:     r.Payload,
		Comment:     r.Comment,
		SubmittedAt: formatTime(r.SubmittedAt),
		DecidedAt:   formatTime(r.DecidedAt),
		DecidedBy:   r.DecidedBy,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func NewDecisionResponse(d Decision) DecisionResponse {
	return DecisionResponse{
		RequestID: d.RequestID,
		NewState:  string(d.NewState),
		DecidedBy: d.DecidedBy,
		DecidedAt: d.DecidedAt.UTC().Format(time.RFC3339),
		Comment:   d.Comment,
	}
}

func NewAuditEntryResponse(e AuditEntry) AuditEntryResponse {
	resp := AuditEntryResponse{
		ID:        e.ID,
		RequestID: e.RequestID,
		Action:    string(e.Action),
		ActorID:   e.ActorID,
		ToState:   string(e.ToState),
		Comment:   e.Comment,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.FromState != nil {
		from := string(*e.FromState)
		resp.FromState = &from
	}
	return resp
}
