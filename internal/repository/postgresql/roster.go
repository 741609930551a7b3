package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type rosterRepository struct {
	db *database.DB
}

func NewRosterRepository(db *database.DB) attendance.RosterRepository {
	return &rosterRepository{db: db}
}

// GetShift implements attendance.RosterRepository. A dated assignment
// wins over the employee's default schedule; the day row is picked by ISO
// weekday.
func (r *rosterRepository) GetShift(ctx context.Context, employeeID string, date time.Time) (attendance.ShiftWindow, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		WITH target_schedule AS (
			SELECT COALESCE(
				(
					SELECT esa.work_schedule_id
					FROM employee_schedule_assignments esa
					WHERE esa.employee_id = $1
					  AND $2::date BETWEEN esa.start_date AND esa.end_date
					ORDER BY esa.start_date DESC
					LIMIT 1
				),
				(
					SELECT e.work_schedule_id
					FROM employees e
					WHERE e.id = $1 AND e.deleted_at IS NULL
				)
			) AS id
		)
		SELECT
			ws.grace_period_minutes,
			ws.grace_early_out_minutes,
			wst.clock_in_time::text,
			wst.clock_out_time::text,
			wst.break_start_time::text,
			wst.break_end_time::text
		FROM target_schedule ts
		JOIN work_schedules ws ON ws.id = ts.id AND ws.deleted_at IS NULL
		JOIN work_schedule_times wst
		  ON wst.work_schedule_id = ws.id
		 AND wst.day_of_week = EXTRACT(ISODOW FROM $2::date)::int
	`

	var (
		shift                attendance.ShiftWindow
		start, end           string
		breakStart, breakEnd *string
	)
	err := q.QueryRow(ctx, query, employeeID, date.Format("2006-01-02")).Scan(
		&shift.GraceLateInMinutes,
		&shift.GraceEarlyOutMinutes,
		&start,
		&end,
		&breakStart,
		&breakEnd,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.ShiftWindow{}, attendance.ErrShiftNotFound
		}
		return attendance.ShiftWindow{}, fmt.Errorf("failed to get shift: %w", err)
	}

	if shift.Start, err = attendance.ParseTimeOfDay(start); err != nil {
		return attendance.ShiftWindow{}, err
	}
	if shift.End, err = attendance.ParseTimeOfDay(end); err != nil {
		return attendance.ShiftWindow{}, err
	}
	if breakStart != nil && breakEnd != nil {
		out, err := attendance.ParseTimeOfDay(*breakStart)
		if err != nil {
			return attendance.ShiftWindow{}, err
		}
		in, err := attendance.ParseTimeOfDay(*breakEnd)
		if err != nil {
			return attendance.ShiftWindow{}, err
		}
		shift.MealWindow = &attendance.MealWindow{Out: out, In: in}
	}

	return shift, nil
}
