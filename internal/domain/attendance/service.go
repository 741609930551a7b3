package attendance

import (
	"context"
)

// AttendanceService defines business logic for attendance operations
type AttendanceService interface {
	// ClockIn opens a new attendance session for the employee
	ClockIn(ctx context.Context, req ClockRequest) (AttendanceResponse, error)

	// ClockOut closes the employee's open session
	ClockOut(ctx context.Context, req ClockRequest) (AttendanceResponse, error)

	// GetAttendanceSummary classifies every record in the range and aggregates them
	GetAttendanceSummary(ctx context.Context, filter AttendanceRangeFilter) (AttendanceSummaryResponse, error)
}
