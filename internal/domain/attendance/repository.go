package attendance

import (
	"context"
	"time"
)

// AttendanceRepository is the attendance feed plus the clock-in/out writes.
type AttendanceRepository interface {
	// Create inserts a record opened at checkIn.
	Create(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)

	// GetOpenSession returns the employee's record with no check-out yet.
	// Returns ErrNotCheckedIn when there is none.
	GetOpenSession(ctx context.Context, employeeID string) (AttendanceRecord, error)

	// SetCheckOut stamps checkOut on a record that has none. It returns
	// ErrAlreadyCheckedOut when the record was closed in the meantime.
	SetCheckOut(ctx context.Context, id string, checkOut time.Time) (AttendanceRecord, error)

	// ListByEmployee returns raw rows for the employee whose date falls in
	// [from, to], ordered by date then check-in.
	ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]RawAttendance, error)
}

// RosterRepository looks up the assigned shift for an employee on a date.
type RosterRepository interface {
	// GetShift returns ErrShiftNotFound when no roster entry exists.
	GetShift(ctx context.Context, employeeID string, date time.Time) (ShiftWindow, error)
}
