package approval

import "errors"

var (
	ErrRequestNotFound        = errors.New("request not found")
	ErrNoApproverFound        = errors.New("no eligible approver found")
	ErrUnauthorized           = errors.New("principal is not authorized for this request")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrEmployeeNotFound       = errors.New("employee not found in organization hierarchy")

	// ErrStateConflict is returned by repositories when the stored state no
	// longer matches Transition.From.
	ErrStateConflict = errors.New("request state changed concurrently")
)
