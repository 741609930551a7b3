package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type roleDirectory struct {
	db *database.DB
}

func NewRoleDirectory(db *database.DB) user.RoleDirectory {
	return &roleDirectory{db: db}
}

// RoleOf implements user.RoleDirectory.
func (r *roleDirectory) RoleOf(ctx context.Context, employeeID string) (user.Role, error) {
	q := GetQuerier(ctx, r.db)

	var raw string
	if err := q.QueryRow(ctx, `SELECT role FROM users WHERE employee_id = $1`, employeeID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", user.ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return user.ParseRole(raw)
}

// ListAdministrators implements user.RoleDirectory.
func (r *roleDirectory) ListAdministrators(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT employee_id::text
		FROM users
		WHERE role = $1 AND employee_id IS NOT NULL
		ORDER BY employee_id
	`, string(user.RoleAdministrator))
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan administrator: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
