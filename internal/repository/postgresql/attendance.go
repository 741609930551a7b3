package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const attendanceColumns = `id, employee_id, date, clock_in, clock_out, worked_hours, created_at, updated_at`

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, record attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	id, err := uuid.NewV7()
	if err != nil {
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to generate attendance id: %w", err)
	}
	record.ID = id.String()

	query := `
		INSERT INTO attendances (id, employee_id, date, clock_in, clock_out, worked_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err = q.QueryRow(ctx, query,
		record.ID,
		record.EmployeeID,
		record.Date.Format("2006-01-02"),
		record.CheckIn,
		record.CheckOut,
		record.WorkedHours,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return attendance.AttendanceRecord{}, attendance.ErrOpenSessionExists
		}
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return record, nil
}

// GetOpenSession implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenSession(ctx context.Context, employeeID string) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE employee_id = $1
		  AND clock_in IS NOT NULL
		  AND clock_out IS NULL
		ORDER BY clock_in DESC
		LIMIT 1
	`

	record, err := scanAttendance(q.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.AttendanceRecord{}, attendance.ErrNotCheckedIn
		}
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to get open session: %w", err)
	}
	return record, nil
}

// SetCheckOut implements attendance.AttendanceRepository.
func (a *attendanceRepository) SetCheckOut(ctx context.Context, id string, checkOut time.Time) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendances
		SET clock_out = $2, updated_at = NOW()
		WHERE id = $1 AND clock_out IS NULL
		RETURNING ` + attendanceColumns

	record, err := scanAttendance(q.QueryRow(ctx, query, id, checkOut))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to set check-out: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM attendances WHERE id = $1)`, id).Scan(&exists); err != nil {
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to check attendance: %w", err)
	}
	if !exists {
		return attendance.AttendanceRecord{}, attendance.ErrAttendanceNotFound
	}
	return attendance.AttendanceRecord{}, attendance.ErrAlreadyCheckedOut
}

// ListByEmployee implements attendance.AttendanceRepository. Stamps are
// returned in their text form and parsed by the service's normalizer.
func (a *attendanceRepository) ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.RawAttendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, employee_id, date::text, clock_in::text, clock_out::text, worked_hours
		FROM attendances
		WHERE employee_id = $1
		  AND date BETWEEN $2 AND $3
		ORDER BY date, clock_in NULLS LAST
	`

	rows, err := q.Query(ctx, query, employeeID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var result []attendance.RawAttendance
	for rows.Next() {
		var r attendance.RawAttendance
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.CheckIn, &r.CheckOut, &r.WorkedHours); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance: %w", err)
	}
	return result, nil
}

func scanAttendance(row pgx.Row) (attendance.AttendanceRecord, error) {
	var r attendance.AttendanceRecord
	err := row.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.CheckIn, &r.CheckOut, &r.WorkedHours, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
