package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/sse"
	"github.com/google/uuid"
)

const (
	EventRequestSubmitted = "request.submitted"
	EventRequestDecided   = "request.decided"
	EventRequestReminder  = "request.reminder"
)

// EventPublisher delivers events to connected principals.
type EventPublisher interface {
	PublishToMany(recipientIDs []string, event sse.Event)
}

type ApprovalServiceImpl struct {
	requests   approval.RequestRepository
	audits     approval.AuditRepository
	machine    *StateMachine
	router     *Router
	validators approval.PayloadValidators
	publisher  EventPublisher
	now        func() time.Time

	// reminderBatch is the page size RemindPending walks the backlog with.
	reminderBatch int
}

func NewApprovalService(
	requests approval.RequestRepository,
	audits approval.AuditRepository,
	machine *StateMachine,
	router *Router,
	validators approval.PayloadValidators,
	publisher EventPublisher,
) *ApprovalServiceImpl {
	return &ApprovalServiceImpl{
		requests:   requests,
		audits:     audits,
		machine:    machine,
		router:     router,
		validators: validators,
		publisher:  publisher,
		now:        time.Now,

		reminderBatch: approval.MaxListLimit,
	}
}

// CreateRequest implements approval.ApprovalService.
func (s *ApprovalServiceImpl) CreateRequest(ctx context.Context, principal user.Principal, req approval.CreateRequestRequest) (approval.RequestResponse, error) {
	if principal.EmployeeID == "" {
		return approval.RequestResponse{}, user.ErrEmployeeIDRequired
	}
	if err := req.Validate(); err != nil {
		return approval.RequestResponse{}, err
	}

	requestType := approval.RequestType(req.Type)
	if err := s.validators.Validate(requestType, req.Payload); err != nil {
		return approval.RequestResponse{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return approval.RequestResponse{}, fmt.Errorf("failed to generate request id: %w", err)
	}

	now := s.now().UTC()
	newRequest := approval.Request{
		ID:          id.String(),
		Type:        requestType,
		RequesterID: principal.EmployeeID,
		State:       approval.StateDraft,
		Payload:     req.Payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.requests.Create(ctx, newRequest, approval.AuditEntry{
		RequestID: newRequest.ID,
		Action:    approval.AuditActionCreated,
		ActorID:   principal.EmployeeID,
		ToState:   approval.StateDraft,
		CreatedAt: now,
	})
	if err != nil {
		return approval.RequestResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	slog.Info("Request created", "request_id", created.ID, "type", created.Type, "requester_id", created.RequesterID)
	return approval.NewRequestResponse(created), nil
}

// SubmitRequest implements approval.ApprovalService.
func (s *ApprovalServiceImpl) SubmitRequest(ctx context.Context, principal user.Principal, requestID string) (approval.RequestResponse, error) {
	submitted, route, err := s.machine.Submit(ctx, principal.EmployeeID, requestID)
	if err != nil {
		return approval.RequestResponse{}, err
	}

	slog.Info("Request submitted",
		"request_id", submitted.ID,
		"candidates", route.Candidates,
		"admin_queue", route.AdminQueue)

	resp := approval.NewRequestResponse(submitted)
	s.notify(ctx, route, sse.Event{Name: EventRequestSubmitted, Data: resp})
	return resp, nil
}

// DecideRequest implements approval.ApprovalService. Event fan-out happens
// after the commit and never undoes the decision.
func (s *ApprovalServiceImpl) DecideRequest(ctx context.Context, principal user.Principal, req approval.DecideRequest) (approval.DecisionResponse, error) {
	decided, decision, err := s.machine.Decide(ctx, principal.EmployeeID, req)
	if err != nil {
		return approval.DecisionResponse{}, err
	}

	slog.Info("Request decided",
		"request_id", decision.RequestID,
		"new_state", decision.NewState,
		"decided_by", decision.DecidedBy)

	resp := approval.NewDecisionResponse(decision)

	if s.publisher != nil {
		s.publisher.PublishToMany([]string{decided.RequesterID}, sse.Event{Name: EventRequestDecided, Data: resp})
	}

	return resp, nil
}

// GetRequest implements approval.ApprovalService.
func (s *ApprovalServiceImpl) GetRequest(ctx context.Context, principal user.Principal, requestID string) (approval.RequestResponse, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return approval.RequestResponse{}, err
	}
	if err := s.authorizeView(ctx, principal.EmployeeID, request); err != nil {
		return approval.RequestResponse{}, err
	}
	return approval.NewRequestResponse(request), nil
}

// ListRequests implements approval.ApprovalService.
func (s *ApprovalServiceImpl) ListRequests(ctx context.Context, principal user.Principal, filter approval.ListRequestsFilter) (approval.ListRequestsResponse, error) {
	if err := filter.Validate(); err != nil {
		return approval.ListRequestsResponse{}, err
	}

	repoFilter := approval.RequestFilter{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	switch filter.Scope {
	case approval.ScopeMine:
		repoFilter.RequesterID = &principal.EmployeeID
	case approval.ScopeApprovals:
		repoFilter.ApproverID = &principal.EmployeeID
	case approval.ScopeAll:
		allowed, err := s.machine.Can(ctx, principal.EmployeeID, user.PermissionRequestViewAll)
		if err != nil {
			return approval.ListRequestsResponse{}, err
		}
		if !allowed {
			return approval.ListRequestsResponse{}, approval.ErrUnauthorized
		}
	}

	if filter.State != "" {
		state := approval.State(filter.State)
		repoFilter.State = &state
	}
	if filter.Type != "" {
		requestType := approval.RequestType(filter.Type)
		repoFilter.Type = &requestType
	}

	requests, total, err := s.requests.List(ctx, repoFilter)
	if err != nil {
		return approval.ListRequestsResponse{}, fmt.Errorf("failed to list requests: %w", err)
	}

	resp := approval.ListRequestsResponse{
		Requests: make([]approval.RequestResponse, 0, len(requests)),
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	for _, r := range requests {
		resp.Requests = append(resp.Requests, approval.NewRequestResponse(r))
	}
	return resp, nil
}

// GetAuditTrail implements approval.ApprovalService.
func (s *ApprovalServiceImpl) GetAuditTrail(ctx context.Context, principal user.Principal, requestID string) ([]approval.AuditEntryResponse, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, principal.EmployeeID, request); err != nil {
		return nil, err
	}

	entries, err := s.audits.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	resp := make([]approval.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, approval.NewAuditEntryResponse(e))
	}
	return resp, nil
}

// RemindPending implements approval.ApprovalService. The whole backlog is
// walked oldest submission first, one page at a time.
func (s *ApprovalServiceImpl) RemindPending(ctx context.Context, olderThan time.Duration) (int, error) {
	state := approval.StatePending
	cutoff := s.now().UTC().Add(-olderThan)
	batch := s.reminderBatch
	if batch <= 0 {
		batch = approval.MaxListLimit
	}

	reminded := 0
	for offset := 0; ; offset += batch {
		if err := ctx.Err(); err != nil {
			return reminded, err
		}

		pending, _, err := s.requests.List(ctx, approval.RequestFilter{
			State:         &state,
			PendingBefore: &cutoff,
			OldestFirst:   true,
			Limit:         batch,
			Offset:        offset,
		})
		if err != nil {
			return reminded, fmt.Errorf("failed to list pending requests: %w", err)
		}

		for _, request := range pending {
			route, err := s.router.Resolve(ctx, request.RequesterID)
			if err != nil {
				slog.Warn("Cannot route reminder for pending request",
					"request_id", request.ID,
					"error", err)
				continue
			}
			s.notify(ctx, route, sse.Event{Name: EventRequestReminder, Data: approval.NewRequestResponse(request)})
			reminded++
		}

		if len(pending) < batch {
			return reminded, nil
		}
	}
}

func (s *ApprovalServiceImpl) notify(ctx context.Context, route approval.Route, event sse.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishToMany(route.Recipients(), event)
}

// authorizeView allows the requester, the assigned or deciding approver,
// any current approver and administrators.
func (s *ApprovalServiceImpl) authorizeView(ctx context.Context, principalID string, request approval.Request) error {
	if principalID == request.RequesterID {
		return nil
	}
	if request.ApproverID != nil && *request.ApproverID == principalID {
		return nil
	}
	if request.DecidedBy != nil && *request.DecidedBy == principalID {
		return nil
	}

	err := s.machine.Authorize(ctx, principalID, request)
	if errors.Is(err, approval.ErrUnauthorized) {
		return approval.ErrUnauthorized
	}
	return err
}
