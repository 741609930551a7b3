package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type orgHierarchy struct {
	db *database.DB
}

func NewOrgHierarchy(db *database.DB) approval.OrgHierarchy {
	return &orgHierarchy{db: db}
}

// ManagerOf implements approval.OrgHierarchy.
func (o *orgHierarchy) ManagerOf(ctx context.Context, employeeID string) (*string, error) {
	return o.employeeColumn(ctx, employeeID, `SELECT manager_id::text FROM employees WHERE id = $1 AND deleted_at IS NULL`)
}

// DepartmentOf implements approval.OrgHierarchy.
func (o *orgHierarchy) DepartmentOf(ctx context.Context, employeeID string) (*string, error) {
	return o.employeeColumn(ctx, employeeID, `SELECT department_id::text FROM employees WHERE id = $1 AND deleted_at IS NULL`)
}

// DepartmentManager implements approval.OrgHierarchy. An unknown
// department has no manager.
func (o *orgHierarchy) DepartmentManager(ctx context.Context, departmentID string) (*string, error) {
	q := GetQuerier(ctx, o.db)

	var managerID *string
	err := q.QueryRow(ctx, `SELECT manager_employee_id::text FROM organization_units WHERE id = $1`, departmentID).Scan(&managerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get department manager: %w", err)
	}
	return managerID, nil
}

func (o *orgHierarchy) employeeColumn(ctx context.Context, employeeID, query string) (*string, error) {
	q := GetQuerier(ctx, o.db)

	var value *string
	if err := q.QueryRow(ctx, query, employeeID).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to query employee %s: %w", employeeID, err)
	}
	return value, nil
}
