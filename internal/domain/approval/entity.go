package approval

import (
	"encoding/json"
	"time"
)

type RequestType string

const (
	RequestTypeLeave         RequestType = "leave"
	RequestTypeExpense       RequestType = "expense"
	RequestTypeProfileChange RequestType = "profile_change"
)

var RequestTypes = []string{
	string(RequestTypeLeave),
	string(RequestTypeExpense),
	string(RequestTypeProfileChange),
}

type State string

const (
	StateDraft    State = "draft"
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

var States = []string{
	string(StateDraft),
	string(StatePending),
	string(StateApproved),
	string(StateRejected),
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateRejected
}

// CanTransitionTo encodes Draft -> Pending -> {Approved|Rejected}.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateDraft:
		return next == StatePending
	case StatePending:
		return next == StateApproved || next == StateRejected
	default:
		return false
	}
}

// Request is an approvable request of any type. Payload is opaque to the
// workflow beyond per-type validation.
type Request struct {
	ID          string
	Type        RequestType
	RequesterID string
	ApproverID  *string // nil while Draft, or when routed to the administrator queue
	State       State
	Payload     json.RawMessage
	Comment     *string
	SubmittedAt *time.Time
	DecidedAt   *time.Time
	DecidedBy   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AuditAction string

const (
	AuditActionCreated   AuditAction = "created"
	AuditActionSubmitted AuditAction = "submitted"
	AuditActionApproved  AuditAction = "approved"
	AuditActionRejected  AuditAction = "rejected"
)

// AuditEntry is an append-only record of one lifecycle event.
type AuditEntry struct {
	ID        string
	RequestID string
	Action    AuditAction
	ActorID   string
	FromState *State
	ToState   State
	Comment   *string
	CreatedAt time.Time
}

// Transition is a conditional state change. It is applied only when the
// stored state still equals From, together with its audit entry and, for
// approvals, its outbox entry.
type Transition struct {
	RequestID   string
	From        State
	To          State
	ApproverID  *string
	SubmittedAt *time.Time
	DecidedBy   *string
	DecidedAt   *time.Time
	Comment     *string
	Audit       AuditEntry
	Outbox      *OutboxEntry
}

// Decision is the outcome of a terminal transition.
type Decision struct {
	RequestID string
	NewState  State
	DecidedBy string
	DecidedAt time.Time
	Comment   *string
}

// Route is the approver resolution for a requester. Candidates come from
// the hierarchy only; AdminQueue is set when it is empty, in which case
// Administrators lists who can decide instead. The requester is never in
// either list.
type Route struct {
	Candidates     []string
	AdminQueue     bool
	Administrators []string
}

// Primary returns the first candidate, if any.
func (r Route) Primary() *string {
	if len(r.Candidates) == 0 {
		return nil
	}
	id := r.Candidates[0]
	return &id
}

// Recipients lists who should be told about a request on this route.
func (r Route) Recipients() []string {
	if len(r.Candidates) > 0 {
		return r.Candidates
	}
	return r.Administrators
}

type RequestFilter struct {
	RequesterID   *string
	ApproverID    *string
	State         *State
	Type          *RequestType
	PendingBefore *time.Time

	// OldestFirst orders by submission time ascending instead of newest
	// created first.
	OldestFirst bool
	Limit       int
	Offset      int
}

// OutboxEntry hands an approved payload to the system of record.
type OutboxEntry struct {
	ID          string
	RequestID   string
	Type        RequestType
	RequesterID string
	Payload     json.RawMessage
	DecidedBy   string
	DecidedAt   time.Time
	CreatedAt   time.Time
}

// NewOutboxEntry captures an approved request for the system of record.
func NewOutboxEntry(request Request, decidedBy string, decidedAt time.Time) OutboxEntry {
	return OutboxEntry{
		RequestID:   request.ID,
		Type:        request.Type,
		RequesterID: request.RequesterID,
		Payload:     request.Payload,
		DecidedBy:   decidedBy,
		DecidedAt:   decidedAt,
		CreatedAt:   decidedAt,
	}
}
