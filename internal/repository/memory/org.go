package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
)

type employeeNode struct {
	managerID    *string
	departmentID *string
}

// OrgHierarchy is a mutable in-memory org chart. Changes are visible to
// the next lookup.
type OrgHierarchy struct {
	mu          sync.RWMutex
	employees   map[string]employeeNode
	departments map[string]*string
}

func NewOrgHierarchy() *OrgHierarchy {
	return &OrgHierarchy{
		employees:   make(map[string]employeeNode),
		departments: make(map[string]*string),
	}
}

// AddEmployee registers an employee. Empty IDs mean unset.
func (h *OrgHierarchy) AddEmployee(employeeID, managerID, departmentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.employees[employeeID] = employeeNode{
		managerID:    optional(managerID),
		departmentID: optional(departmentID),
	}
}

// SetManager reassigns (or clears, with "") an employee's direct manager.
func (h *OrgHierarchy) SetManager(employeeID, managerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	node := h.employees[employeeID]
	node.managerID = optional(managerID)
	h.employees[employeeID] = node
}

// SetDepartmentManager assigns (or clears, with "") a department's manager.
func (h *OrgHierarchy) SetDepartmentManager(departmentID, managerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.departments[departmentID] = optional(managerID)
}

// ManagerOf implements approval.OrgHierarchy.
func (h *OrgHierarchy) ManagerOf(ctx context.Context, employeeID string) (*string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	node, ok := h.employees[employeeID]
	if !ok {
		return nil, approval.ErrEmployeeNotFound
	}
	return node.managerID, nil
}

// DepartmentOf implements approval.OrgHierarchy.
func (h *OrgHierarchy) DepartmentOf(ctx context.Context, employeeID string) (*string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	node, ok := h.employees[employeeID]
	if !ok {
		return nil, approval.ErrEmployeeNotFound
	}
	return node.departmentID, nil
}

// DepartmentManager implements approval.OrgHierarchy.
func (h *OrgHierarchy) DepartmentManager(ctx context.Context, departmentID string) (*string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.departments[departmentID], nil
}

// RoleDirectory maps employees to roles.
type RoleDirectory struct {
	mu    sync.RWMutex
	roles map[string]user.Role
}

func NewRoleDirectory() *RoleDirectory {
	return &RoleDirectory{roles: make(map[string]user.Role)}
}

func (d *RoleDirectory) SetRole(employeeID string, role user.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[employeeID] = role
}

// RoleOf implements user.RoleDirectory.
func (d *RoleDirectory) RoleOf(ctx context.Context, employeeID string) (user.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	role, ok := d.roles[employeeID]
	if !ok {
		return "", user.ErrUserNotFound
	}
	return role, nil
}

// ListAdministrators implements user.RoleDirectory.
func (d *RoleDirectory) ListAdministrators(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var admins []string
	for id, role := range d.roles {
		if role == user.RoleAdministrator {
			admins = append(admins, id)
		}
	}
	sort.Strings(admins)
	return admins, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
