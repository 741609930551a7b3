package middleware

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-workflow-go/internal/handler/http/response"
)

// RequirePermission gates a route on the principal's role. Per-request
// checks, such as who may decide which request, stay in the services.
func RequirePermission(permission user.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}

			if !user.HasPermission(principal.Role, permission) {
				slog.Debug("Permission denied", "employee_id", principal.EmployeeID, "role", principal.Role, "permission", permission)
				response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", map[string]string{
					"required": string(permission),
					"role":     string(principal.Role),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
