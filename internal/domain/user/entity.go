package user

import "errors"

type Role string

const (
	RoleEmployee      Role = "employee"      // Regular employee
	RoleManager       Role = "manager"       // Approves for their reports and department
	RoleAdministrator Role = "administrator" // May decide any pending request
)

// ParseRole maps a stored capability code onto a Role. Unknown codes are
// rejected rather than guessed.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleEmployee, RoleManager, RoleAdministrator:
		return Role(s), nil
	default:
		return "", errors.Join(ErrUnknownRole, errors.New(s))
	}
}

// Principal is the authenticated actor behind a call.
type Principal struct {
	UserID     string
	EmployeeID string
	Role       Role
}

// IsAdministrator checks the role carried by the principal.
func (p Principal) IsAdministrator() bool {
	return p.Role == RoleAdministrator
}

// IsManager checks if principal is manager or administrator
func (p Principal) IsManager() bool {
	return p.Role == RoleManager || p.Role == RoleAdministrator
}
