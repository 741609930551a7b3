package user

import (
	"context"
)

// RoleDirectory resolves capabilities for principals. Roles come from the
// directory, never from display names.
type RoleDirectory interface {
	// RoleOf returns ErrUserNotFound when no principal is linked to employeeID.
	RoleOf(ctx context.Context, employeeID string) (Role, error)
	ListAdministrators(ctx context.Context) ([]string, error)
}
