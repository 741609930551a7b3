package approval

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
)

type ApprovalService interface {
	CreateRequest(ctx context.Context, principal user.Principal, req CreateRequestRequest) (RequestResponse, error)
	SubmitRequest(ctx context.Context, principal user.Principal, requestID string) (RequestResponse, error)
	DecideRequest(ctx context.Context, principal user.Principal, req DecideRequest) (DecisionResponse, error)
	GetRequest(ctx context.Context, principal user.Principal, requestID string) (RequestResponse, error)
	ListRequests(ctx context.Context, principal user.Principal, filter ListRequestsFilter) (ListRequestsResponse, error)
	GetAuditTrail(ctx context.Context, principal user.Principal, requestID string) ([]AuditEntryResponse, error)
	// RemindPending notifies the current approvers of requests pending
	// longer than olderThan and returns how many requests were reminded.
	RemindPending(ctx context.Context, olderThan time.Duration) (int, error)
}
