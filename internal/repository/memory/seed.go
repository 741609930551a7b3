package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
)

// Seed is the org chart and role assignments loaded into the in-memory
// driver at startup.
type Seed struct {
	Employees   []SeedEmployee   `json:"employees"`
	Departments []SeedDepartment `json:"departments"`
}

type SeedEmployee struct {
	ID           string `json:"id"`
	ManagerID    string `json:"manager_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	Role         string `json:"role,omitempty"`
}

type SeedDepartment struct {
	ID        string `json:"id"`
	ManagerID string `json:"manager_id,omitempty"`
}

// LoadSeedFile reads a JSON seed from path.
func LoadSeedFile(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed, nil
}

// Apply loads the seed into org and roles. Employees without a role are
// registered as plain employees. Nothing is applied when any entry is invalid.
func (s Seed) Apply(org *OrgHierarchy, roles *RoleDirectory) error {
	parsed := make([]user.Role, len(s.Employees))
	for i, e := range s.Employees {
		if e.ID == "" {
			return fmt.Errorf("seed employee %d has no id", i)
		}
		if e.Role == "" {
			parsed[i] = user.RoleEmployee
			continue
		}
		role, err := user.ParseRole(e.Role)
		if err != nil {
			return fmt.Errorf("seed employee %s: %w", e.ID, err)
		}
		parsed[i] = role
	}
	for i, d := range s.Departments {
		if d.ID == "" {
			return fmt.Errorf("seed department %d has no id", i)
		}
	}

	for i, e := range s.Employees {
		org.AddEmployee(e.ID, e.ManagerID, e.DepartmentID)
		roles.SetRole(e.ID, parsed[i])
	}
	for _, d := range s.Departments {
		org.SetDepartmentManager(d.ID, d.ManagerID)
	}
	return nil
}
