package postgresql_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraft(requesterID string) (approval.Request, approval.AuditEntry) {
	req := approval.Request{
		Type:        approval.RequestTypeExpense,
		RequesterID: requesterID,
		State:       approval.StateDraft,
		Payload:     json.RawMessage(`{"amount":"12.50","currency":"IDR"}`),
	}
	audit := approval.AuditEntry{
		Action:  approval.AuditActionCreated,
		ActorID: requesterID,
		ToState: approval.StateDraft,
	}
	return req, audit
}

func submit(t *testing.T, repo approval.RequestRepository, req approval.Request, approverID string) approval.Request {
	t.Helper()
	now := time.Now().UTC()
	from := approval.StateDraft
	updated, err := repo.Transition(context.Background(), approval.Transition{
		RequestID:   req.ID,
		From:        approval.StateDraft,
		To:          approval.StatePending,
		ApproverID:  &approverID,
		SubmittedAt: &now,
		Audit: approval.AuditEntry{
			Action:    approval.AuditActionSubmitted,
			ActorID:   req.RequesterID,
			FromState: &from,
			ToState:   approval.StatePending,
		},
	})
	require.NoError(t, err)
	return updated
}

// ===== APPROVAL REQUEST REPOSITORY TESTS =====

func TestApprovalRequestRepository_CreateWritesAudit(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	requests := postgresql.NewApprovalRequestRepository(setup.DB)
	audits := postgresql.NewAuditRepository(setup.DB)
	requesterID := setup.SeedEmployee(t, nil, nil, nil)

	req, audit := newDraft(requesterID)
	created, err := requests.Create(ctx, req, audit)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, approval.StateDraft, created.State)
	assert.JSONEq(t, string(req.Payload), string(created.Payload))

	got, err := requests.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	entries, err := audits.ListByRequest(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, approval.AuditActionCreated, entries[0].Action)
	assert.Nil(t, entries[0].FromState)
}

func TestApprovalRequestRepository_GetByIDNotFound(t *testing.T) {
	setup := NewTestDatabase(t)
	requests := postgresql.NewApprovalRequestRepository(setup.DB)

	_, err := requests.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, approval.ErrRequestNotFound)

	_, err = requests.GetByID(context.Background(), "0190a7d2-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, approval.ErrRequestNotFound)
}

func TestApprovalRequestRepository_TransitionConflict(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	requests := postgresql.NewApprovalRequestRepository(setup.DB)
	audits := postgresql.NewAuditRepository(setup.DB)
	managerID := setup.SeedEmployee(t, nil, nil, nil)
	requesterID := setup.SeedEmployee(t, &managerID, nil, nil)

	req, audit := newDraft(requesterID)
	created, err := requests.Create(ctx, req, audit)
	require.NoError(t, err)

	pending := submit(t, requests, created, managerID)
	assert.Equal(t, approval.StatePending, pending.State)
	require.NotNil(t, pending.ApproverID)
	assert.Equal(t, managerID, *pending.ApproverID)

	from := approval.StateDraft
	_, err = requests.Transition(ctx, approval.Transition{
		RequestID: created.ID,
		From:      approval.StateDraft,
		To:        approval.StatePending,
		Audit:     approval.AuditEntry{Action: approval.AuditActionSubmitted, ActorID: requesterID, FromState: &from, ToState: approval.StatePending},
	})
	assert.ErrorIs(t, err, approval.ErrStateConflict)

	entries, err := audits.ListByRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestApprovalRequestRepository_ConcurrentDecisionsOneWinner(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	requests := postgresql.NewApprovalRequestRepository(setup.DB)
	audits := postgresql.NewAuditRepository(setup.DB)
	managerID := setup.SeedEmployee(t, nil, nil, nil)
	requesterID := setup.SeedEmployee(t, &managerID, nil, nil)

	req, audit := newDraft(requesterID)
	created, err := requests.Create(ctx, req, audit)
	require.NoError(t, err)
	submit(t, requests, created, managerID)

	outcomes := []approval.State{approval.StateApproved, approval.StateRejected}
	errs := make([]error, len(outcomes))
	var wg sync.WaitGroup
	for i, outcome := range outcomes {
		wg.Add(1)
		go func(i int, outcome approval.State) {
			defer wg.Done()
			now := time.Now().UTC()
			from := approval.StatePending
			comment := "decided"
			_, errs[i] = requests.Transition(ctx, approval.Transition{
				RequestID: created.ID,
				From:      approval.StatePending,
				To:        outcome,
				DecidedBy: &managerID,
				DecidedAt: &now,
				Comment:   &comment,
				Audit:     approval.AuditEntry{Action: approval.AuditAction(outcome), ActorID: managerID, FromState: &from, ToState: outcome},
			})
		}(i, outcome)
	}
	wg.Wait()

	var winners, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, approval.ErrStateConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, conflicts)

	entries, err := audits.ListByRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestApprovalRequestRepository_ListFilters(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	requests := postgresql.NewApprovalRequestRepository(setup.DB)
	managerID := setup.SeedEmployee(t, nil, nil, nil)
	requesterID := setup.SeedEmployee(t, &managerID, nil, nil)

	var pendingID string
	for i := 0; i < 3; i++ {
		req, audit := newDraft(requesterID)
		created, err := requests.Create(ctx, req, audit)
		require.NoError(t, err)
		if i == 0 {
			pendingID = submit(t, requests, created, managerID).ID
		}
	}

	mine, total, err := requests.List(ctx, approval.RequestFilter{RequesterID: &requesterID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, mine, 2)

	pending := approval.StatePending
	queue, total, err := requests.List(ctx, approval.RequestFilter{ApproverID: &managerID, State: &pending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, queue, 1)
	assert.Equal(t, pendingID, queue[0].ID)

	future := time.Now().Add(time.Hour)
	stale, _, err := requests.List(ctx, approval.RequestFilter{State: &pending, PendingBefore: &future})
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

// ===== OUTBOX TESTS =====

func approve(ctx context.Context, repo approval.RequestRepository, req approval.Request, approverID string, outbox approval.OutboxEntry) (approval.Request, error) {
	now := time.Now().UTC()
	from := approval.StatePending
	return repo.Transition(ctx, approval.Transition{
		RequestID: req.ID,
		From:      approval.StatePending,
		To:        approval.StateApproved,
		DecidedBy: &approverID,
		DecidedAt: &now,
		Audit:     approval.AuditEntry{Action: approval.AuditActionApproved, ActorID: approverID, FromState: &from, ToState: approval.StateApproved},
		Outbox:    &outbox,
	})
}

func outboxRows(t *testing.T, setup *TestDatabaseSetup, requestID string) (int, string) {
	t.Helper()
	var (
		count     int
		decidedBy *string
	)
	err := setup.DB.QueryRow(context.Background(), `
		SELECT COUNT(*), MAX(decided_by::text) FROM approval_outbox WHERE request_id = $1
	`, requestID).Scan(&count, &decidedBy)
	require.NoError(t, err)
	if decidedBy == nil {
		return count, ""
	}
	return count, *decidedBy
}

func TestApprovalRequestRepository_ApprovalWritesOutboxInTransaction(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	requests := postgresql.NewApprovalRequestRepository(setup.DB)
	managerID := setup.SeedEmployee(t, nil, nil, nil)
	requesterID := setup.SeedEmployee(t, &managerID, nil, nil)

	req, audit := newDraft(requesterID)
	created, err := requests.Create(ctx, req, audit)
	require.NoError(t, err)
	pending := submit(t, requests, created, managerID)

	approved, err := approve(ctx, requests, pending, managerID, approval.NewOutboxEntry(pending, managerID, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, approval.StateApproved, approved.State)

	count, decidedBy := outboxRows(t, setup, created.ID)
	assert.Equal(t, 1, count)
	assert.Equal(t, managerID, decidedBy)

	_, err = approve(ctx, requests, pending, managerID, approval.NewOutboxEntry(pending, managerID, time.Now().UTC()))
	assert.ErrorIs(t, err, approval.ErrStateConflict)

	count, _ = outboxRows(t, setup, created.ID)
	assert.Equal(t, 1, count)
}

func TestApprovalRequestRepository_OutboxFailureRollsBackApproval(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	requests := postgresql.NewApprovalRequestRepository(setup.DB)
	audits := postgresql.NewAuditRepository(setup.DB)
	managerID := setup.SeedEmployee(t, nil, nil, nil)
	requesterID := setup.SeedEmployee(t, &managerID, nil, nil)

	req, audit := newDraft(requesterID)
	created, err := requests.Create(ctx, req, audit)
	require.NoError(t, err)
	pending := submit(t, requests, created, managerID)

	broken := approval.NewOutboxEntry(pending, "not-a-uuid", time.Now().UTC())
	_, err = approve(ctx, requests, pending, managerID, broken)
	require.Error(t, err)

	stored, err := requests.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatePending, stored.State)
	assert.Nil(t, stored.DecidedBy)

	count, _ := outboxRows(t, setup, created.ID)
	assert.Equal(t, 0, count)

	entries, err := audits.ListByRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// ===== ORG HIERARCHY AND ROLE DIRECTORY TESTS =====

func TestOrgHierarchy(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	org := postgresql.NewOrgHierarchy(setup.DB)

	headID := setup.SeedEmployee(t, nil, nil, nil)
	deptID := setup.SeedDepartment(t, &headID)
	employeeID := setup.SeedEmployee(t, nil, &deptID, nil)

	manager, err := org.ManagerOf(ctx, employeeID)
	require.NoError(t, err)
	assert.Nil(t, manager)

	dept, err := org.DepartmentOf(ctx, employeeID)
	require.NoError(t, err)
	require.NotNil(t, dept)
	assert.Equal(t, deptID, *dept)

	head, err := org.DepartmentManager(ctx, deptID)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, headID, *head)

	_, err = org.ManagerOf(ctx, "0190a7d2-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, approval.ErrEmployeeNotFound)
}

func TestRoleDirectory(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	roles := postgresql.NewRoleDirectory(setup.DB)

	employeeID := setup.SeedEmployee(t, nil, nil, nil)
	setup.SeedUser(t, employeeID, "employee")

	admins, err := roles.ListAdministrators(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)

	adminID := setup.SeedEmployee(t, nil, nil, nil)
	setup.SeedUser(t, adminID, "administrator")

	role, err := roles.RoleOf(ctx, adminID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdministrator, role)

	admins, err = roles.ListAdministrators(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{adminID}, admins)

	_, err = roles.RoleOf(ctx, "0190a7d2-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
