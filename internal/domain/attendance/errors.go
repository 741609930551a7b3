package attendance

import "errors"

// Attendance domain errors
var (
	// Clock errors
	ErrOpenSessionExists = errors.New("you already have an open attendance session")
	ErrNotCheckedIn      = errors.New("you have not checked in yet")
	ErrAlreadyCheckedOut = errors.New("attendance session has already been checked out")

	// Lookup errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrShiftNotFound      = errors.New("no roster entry found for employee on date")
)
