package approval

import (
	"context"
)

// RequestRepository persists requests. Transition must be atomic: the
// state check, the update, the audit append and the optional outbox entry
// commit together or not at all.
type RequestRepository interface {
	Create(ctx context.Context, request Request, audit AuditEntry) (Request, error)
	GetByID(ctx context.Context, id string) (Request, error)
	List(ctx context.Context, filter RequestFilter) ([]Request, int64, error)
	Transition(ctx context.Context, t Transition) (Request, error)
}

type AuditRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]AuditEntry, error)
}

// OrgHierarchy is read-only. A nil result means the relation is unset.
type OrgHierarchy interface {
	ManagerOf(ctx context.Context, employeeID string) (*string, error)
	DepartmentOf(ctx context.Context, employeeID string) (*string, error)
	DepartmentManager(ctx context.Context, departmentID string) (*string, error)
}
