package user

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUnknownRole             = errors.New("unknown role")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrEmployeeIDRequired      = errors.New("employee ID is required")
)
