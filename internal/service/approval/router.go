package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
)

// Router resolves eligible approvers from the organizational hierarchy.
// Nothing is cached; every call reads the hierarchy again so reassignments
// apply immediately.
type Router struct {
	hierarchy approval.OrgHierarchy
	roles     user.RoleDirectory
}

func NewRouter(hierarchy approval.OrgHierarchy, roles user.RoleDirectory) *Router {
	return &Router{
		hierarchy: hierarchy,
		roles:     roles,
	}
}

// Candidates returns [direct manager], else [department manager], else an
// empty list. Administrators are never part of the list. A requester is
// never their own approver.
func (r *Router) Candidates(ctx context.Context, requesterID string) ([]string, error) {
	managerID, err := r.hierarchy.ManagerOf(ctx, requesterID)
	if err != nil {
		if errors.Is(err, approval.ErrEmployeeNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to get manager of %s: %w", requesterID, err)
	}
	if managerID != nil && *managerID != requesterID {
		return []string{*managerID}, nil
	}

	departmentID, err := r.hierarchy.DepartmentOf(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get department of %s: %w", requesterID, err)
	}
	if departmentID == nil {
		return []string{}, nil
	}

	deptManagerID, err := r.hierarchy.DepartmentManager(ctx, *departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get manager of department %s: %w", *departmentID, err)
	}
	if deptManagerID != nil && *deptManagerID != requesterID {
		return []string{*deptManagerID}, nil
	}

	return []string{}, nil
}

// Resolve returns the route for a new submission. An empty hierarchy falls
// back to the administrator queue, and fails with ErrNoApproverFound when no
// administrator other than the requester can decide.
func (r *Router) Resolve(ctx context.Context, requesterID string) (approval.Route, error) {
	candidates, err := r.Candidates(ctx, requesterID)
	if err != nil {
		return approval.Route{}, err
	}
	if len(candidates) > 0 {
		return approval.Route{Candidates: candidates}, nil
	}

	admins, err := r.roles.ListAdministrators(ctx)
	if err != nil {
		return approval.Route{}, fmt.Errorf("failed to list administrators: %w", err)
	}
	eligible := make([]string, 0, len(admins))
	for _, id := range admins {
		if id != "" && id != requesterID {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return approval.Route{}, approval.ErrNoApproverFound
	}

	return approval.Route{Candidates: candidates, AdminQueue: true, Administrators: eligible}, nil
}
