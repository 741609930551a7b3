package user

type Permission string

const (
	PermissionAttendanceViewOwn Permission = "attendance.view_own"
	PermissionAttendanceCreate  Permission = "attendance.create"
	PermissionAttendanceViewAll Permission = "attendance.view_all"

	PermissionRequestCreate  Permission = "request.create"
	PermissionRequestViewOwn Permission = "request.view_own"
	// Holding request.decide only reaches the decision endpoint. Whether a
	// principal may decide a given request is settled by the approver set.
	PermissionRequestDecide  Permission = "request.decide"
	PermissionRequestViewAll Permission = "request.view_all"
)

type permissionSet map[Permission]struct{}

func grant(base permissionSet, extra ...Permission) permissionSet {
	set := make(permissionSet, len(base)+len(extra))
	for p := range base {
		set[p] = struct{}{}
	}
	for _, p := range extra {
		set[p] = struct{}{}
	}
	return set
}

// Each role holds everything of the role below it.
var (
	employeePermissions = grant(nil,
		PermissionAttendanceViewOwn,
		PermissionAttendanceCreate,
		PermissionRequestCreate,
		PermissionRequestViewOwn,
		PermissionRequestDecide,
	)
	managerPermissions       = grant(employeePermissions, PermissionAttendanceViewAll)
	administratorPermissions = grant(managerPermissions, PermissionRequestViewAll)
)

var rolePermissions = map[Role]permissionSet{
	RoleEmployee:      employeePermissions,
	RoleManager:       managerPermissions,
	RoleAdministrator: administratorPermissions,
}

// HasPermission reports whether role grants permission. Unknown roles grant nothing.
func HasPermission(role Role, permission Permission) bool {
	_, ok := rolePermissions[role][permission]
	return ok
}
