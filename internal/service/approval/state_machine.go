package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
)

// StateMachine owns the Draft -> Pending -> {Approved|Rejected} lifecycle
// for every request type. Each transition is committed with a
// compare-and-swap on the stored state; a lost race surfaces as
// ErrInvalidStateTransition and is never retried here.
type StateMachine struct {
	requests approval.RequestRepository
	router   *Router
	roles    user.RoleDirectory
	now      func() time.Time
}

func NewStateMachine(requests approval.RequestRepository, router *Router, roles user.RoleDirectory) *StateMachine {
	return &StateMachine{
		requests: requests,
		router:   router,
		roles:    roles,
		now:      time.Now,
	}
}

// Submit moves the requester's own draft to Pending. On ErrNoApproverFound
// the request stays Draft.
func (m *StateMachine) Submit(ctx context.Context, principalID, requestID string) (approval.Request, approval.Route, error) {
	request, err := m.requests.GetByID(ctx, requestID)
	if err != nil {
		return approval.Request{}, approval.Route{}, err
	}

	if request.RequesterID != principalID {
		return approval.Request{}, approval.Route{}, approval.ErrUnauthorized
	}
	if request.State != approval.StateDraft {
		return approval.Request{}, approval.Route{}, invalidTransition(request.State, approval.StatePending)
	}

	route, err := m.router.Resolve(ctx, request.RequesterID)
	if err != nil {
		return approval.Request{}, approval.Route{}, err
	}

	now := m.now().UTC()
	from := approval.StateDraft
	updated, err := m.requests.Transition(ctx, approval.Transition{
		RequestID:   request.ID,
		From:        approval.StateDraft,
		To:          approval.StatePending,
		ApproverID:  route.Primary(),
		SubmittedAt: &now,
		Audit: approval.AuditEntry{
			RequestID: request.ID,
			Action:    approval.AuditActionSubmitted,
			ActorID:   principalID,
			FromState: &from,
			ToState:   approval.StatePending,
			CreatedAt: now,
		},
	})
	if err != nil {
		if errors.Is(err, approval.ErrStateConflict) {
			return approval.Request{}, approval.Route{}, invalidTransition(approval.StateDraft, approval.StatePending)
		}
		return approval.Request{}, approval.Route{}, fmt.Errorf("failed to submit request: %w", err)
	}

	return updated, route, nil
}

// Decide applies a terminal outcome. Checks run in this order: the request
// must be Pending, the decision must be well formed, and the principal must
// be eligible at call time. The commit itself is conditioned on the request
// still being Pending. Approvals write their outbox entry in that commit.
func (m *StateMachine) Decide(ctx context.Context, principalID string, req approval.DecideRequest) (approval.Request, approval.Decision, error) {
	request, err := m.requests.GetByID(ctx, req.RequestID)
	if err != nil {
		return approval.Request{}, approval.Decision{}, err
	}

	outcome := approval.State(req.Outcome)
	if request.State != approval.StatePending {
		return approval.Request{}, approval.Decision{}, invalidTransition(request.State, outcome)
	}

	if err := req.Validate(); err != nil {
		return approval.Request{}, approval.Decision{}, err
	}

	if err := m.Authorize(ctx, principalID, request); err != nil {
		return approval.Request{}, approval.Decision{}, err
	}

	now := m.now().UTC()
	from := approval.StatePending
	action := approval.AuditActionApproved
	var outbox *approval.OutboxEntry
	if outcome == approval.StateApproved {
		entry := approval.NewOutboxEntry(request, principalID, now)
		outbox = &entry
	} else {
		action = approval.AuditActionRejected
	}

	updated, err := m.requests.Transition(ctx, approval.Transition{
		RequestID: request.ID,
		From:      approval.StatePending,
		To:        outcome,
		DecidedBy: &principalID,
		DecidedAt: &now,
		Comment:   req.Comment,
		Audit: approval.AuditEntry{
			RequestID: request.ID,
			Action:    action,
			ActorID:   principalID,
			FromState: &from,
			ToState:   outcome,
			Comment:   req.Comment,
			CreatedAt: now,
		},
		Outbox: outbox,
	})
	if err != nil {
		if errors.Is(err, approval.ErrStateConflict) {
			return approval.Request{}, approval.Decision{}, invalidTransition(approval.StatePending, outcome)
		}
		return approval.Request{}, approval.Decision{}, fmt.Errorf("failed to decide request: %w", err)
	}

	return updated, approval.Decision{
		RequestID: updated.ID,
		NewState:  updated.State,
		DecidedBy: principalID,
		DecidedAt: now,
		Comment:   req.Comment,
	}, nil
}

// Authorize checks that principalID may decide request: a freshly resolved
// hierarchy approver, or an administrator. Requesters never decide their
// own requests.
func (m *StateMachine) Authorize(ctx context.Context, principalID string, request approval.Request) error {
	if principalID == request.RequesterID {
		return approval.ErrUnauthorized
	}

	candidates, err := m.router.Candidates(ctx, request.RequesterID)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c == principalID {
			return nil
		}
	}

	isAdmin, err := m.IsAdministrator(ctx, principalID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return approval.ErrUnauthorized
	}
	return nil
}

// IsAdministrator asks the role directory; unknown principals are not
// administrators.
func (m *StateMachine) IsAdministrator(ctx context.Context, principalID string) (bool, error) {
	role, err := m.roleOf(ctx, principalID)
	return role == user.RoleAdministrator, err
}

// Can reports whether the directory role of principalID grants permission.
func (m *StateMachine) Can(ctx context.Context, principalID string, permission user.Permission) (bool, error) {
	role, err := m.roleOf(ctx, principalID)
	if err != nil {
		return false, err
	}
	return user.HasPermission(role, permission), nil
}

// roleOf returns "" for principals unknown to the directory.
func (m *StateMachine) roleOf(ctx context.Context, principalID string) (user.Role, error) {
	role, err := m.roles.RoleOf(ctx, principalID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	return role, nil
}

func invalidTransition(from, to approval.State) error {
	return fmt.Errorf("%w: %s -> %s", approval.ErrInvalidStateTransition, from, to)
}
