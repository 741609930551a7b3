package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-workflow-go/internal/repository/postgresql/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup wraps a migrated, emptied test database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL, applies migrations and
// truncates every table. The test is skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.NewPostgreSQLDB(context.Background(), dsn, database.PoolOptions{MaxConns: 10})
	require.NoError(t, err, "failed to connect to test database")

	setup := &TestDatabaseSetup{DB: db}
	t.Cleanup(setup.Close)

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, migrations.Files))
	require.NoError(t, setup.TruncateAllTables(ctx))
	return setup
}

// TruncateAllTables removes all rows from the application tables.
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"approval_outbox",
		"approval_audit_entries",
		"approval_requests",
		"attendances",
		"employee_schedule_assignments",
		"users",
		"employees",
		"organization_units",
		"work_schedule_times",
		"work_schedules",
	}

	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// Close closes the database connection.
func (s *TestDatabaseSetup) Close() {
	s.DB.Close()
}

// SeedEmployee inserts an employee and returns its id.
func (s *TestDatabaseSetup) SeedEmployee(t *testing.T, managerID, departmentID, scheduleID *string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := s.DB.Exec(context.Background(), `
		INSERT INTO employees (id, full_name, manager_id, department_id, work_schedule_id)
		VALUES ($1, $2, $3, $4, $5)
	`, id, "Employee "+id[:8], managerID, departmentID, scheduleID)
	require.NoError(t, err)
	return id
}

// SeedDepartment inserts an organization unit and returns its id.
func (s *TestDatabaseSetup) SeedDepartment(t *testing.T, managerID *string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := s.DB.Exec(context.Background(), `
		INSERT INTO organization_units (id, name, manager_employee_id) VALUES ($1, $2, $3)
	`, id, "Unit "+id[:8], managerID)
	require.NoError(t, err)
	return id
}

// SeedUser links a principal with role to employeeID.
func (s *TestDatabaseSetup) SeedUser(t *testing.T, employeeID, role string) {
	t.Helper()
	id := uuid.NewString()
	_, err := s.DB.Exec(context.Background(), `
		INSERT INTO users (id, employee_id, email, role) VALUES ($1, $2, $3, $4)
	`, id, employeeID, id+"@example.com", role)
	require.NoError(t, err)
}

// SeedSchedule inserts a schedule with one day row for every ISO weekday.
func (s *TestDatabaseSetup) SeedSchedule(t *testing.T, clockIn, clockOut string, graceLate, graceEarly int, breakStart, breakEnd *string) string {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	_, err := s.DB.Exec(ctx, `
		INSERT INTO work_schedules (id, name, grace_period_minutes, grace_early_out_minutes)
		VALUES ($1, $2, $3, $4)
	`, id, "Schedule "+id[:8], graceLate, graceEarly)
	require.NoError(t, err)

	for dow := 1; dow <= 7; dow++ {
		_, err := s.DB.Exec(ctx, `
			INSERT INTO work_schedule_times (id, work_schedule_id, day_of_week, clock_in_time, clock_out_time, break_start_time, break_end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.NewString(), id, dow, clockIn, clockOut, breakStart, breakEnd)
		require.NoError(t, err)
	}
	return id
}
