package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/timeutil"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var parseErr *timeutil.ParseError
	if errors.As(err, &parseErr) {
		BadRequest(w, "Malformed timestamp", map[string]string{parseErr.Field: parseErr.Error()})
		return
	}

	switch {
	// Approval domain errors
	case errors.Is(err, approval.ErrRequestNotFound):
		NotFound(w, "Request not found")
	case errors.Is(err, approval.ErrNoApproverFound):
		UnprocessableEntity(w, "NO_APPROVER_FOUND", "No approver could be resolved for this request")
	case errors.Is(err, approval.ErrUnauthorized):
		Forbidden(w, "You are not allowed to act on this request")
	case errors.Is(err, approval.ErrInvalidStateTransition):
		Conflict(w, err.Error())
	case errors.Is(err, approval.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Attendance domain errors
	case errors.Is(err, attendance.ErrOpenSessionExists):
		Conflict(w, "You already have an open attendance session")
	case errors.Is(err, attendance.ErrNotCheckedIn):
		Conflict(w, "You have not checked in yet")
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		Conflict(w, "Attendance session has already been checked out")
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")

	// User domain errors
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")
	case errors.Is(err, user.ErrEmployeeIDRequired):
		Forbidden(w, "Token is not linked to an employee")
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
