package approval

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

const (
	requesterID = "emp-requester"
	managerID   = "emp-manager"
	headID      = "emp-head"
	adminID     = "emp-admin"
	strangerID  = "emp-stranger"
	deptID      = "dept-engineering"
)

type publishedEvent struct {
	recipients []string
	event      sse.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishToMany(recipientIDs []string, event sse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	recipients := make([]string, len(recipientIDs))
	copy(recipients, recipientIDs)
	p.events = append(p.events, publishedEvent{recipients: recipients, event: event})
}

func (p *recordingPublisher) byName(name string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store   *memory.RequestStore
	org     *memory.OrgHierarchy
	roles   *memory.RoleDirectory
	router  *Router
	machine *StateMachine
	svc     *ApprovalServiceImpl
	events  *recordingPublisher
}

// newFixture builds: requester -> manager, requester in engineering headed
// by head, plus one administrator and one unrelated employee.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewRequestStore()
	org := memory.NewOrgHierarchy()
	roles := memory.NewRoleDirectory()

	org.AddEmployee(requesterID, managerID, deptID)
	org.AddEmployee(managerID, "", deptID)
	org.AddEmployee(headID, "", deptID)
	org.AddEmployee(adminID, "", "")
	org.AddEmployee(strangerID, "", "")
	org.SetDepartmentManager(deptID, headID)

	roles.SetRole(requesterID, user.RoleEmployee)
	roles.SetRole(managerID, user.RoleManager)
	roles.SetRole(headID, user.RoleManager)
	roles.SetRole(adminID, user.RoleAdministrator)
	roles.SetRole(strangerID, user.RoleEmployee)

	router := NewRouter(org, roles)
	machine := NewStateMachine(store, router, roles)
	events := &recordingPublisher{}
	svc := NewApprovalService(store, store, machine, router, approval.DefaultPayloadValidators(), events)

	return &fixture{
		store:   store,
		org:     org,
		roles:   roles,
		router:  router,
		machine: machine,
		svc:     svc,
		events:  events,
	}
}

func principal(employeeID string) user.Principal {
	return user.Principal{UserID: "user-" + employeeID, EmployeeID: employeeID}
}

func (f *fixture) createDraft(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.CreateRequest(context.Background(), principal(requesterID), approval.CreateRequestRequest{
		Type:    string(approval.RequestTypeLeave),
		Payload: json.RawMessage(`{"leave_type_id":"annual","start_date":"2024-03-01","end_date":"2024-03-02"}`),
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) createPending(t *testing.T) string {
	t.Helper()
	id := f.createDraft(t)
	_, err := f.svc.SubmitRequest(context.Background(), principal(requesterID), id)
	require.NoError(t, err)
	return id
}

func (f *fixture) stateOf(t *testing.T, id string) approval.State {
	t.Helper()
	r, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r.State
}

func strPtr(s string) *string {
	return &s
}
