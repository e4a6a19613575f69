package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles.
const (
	RolePhysician      = "physician"
	RoleAdminReferring = "admin_referring"
	RoleAdminStaff     = "admin_staff"
	RoleAdminRadiology = "admin_radiology"
	RoleRadiologist    = "radiologist"
	RoleScheduler      = "scheduler"
	RoleSuperAdmin     = "super_admin"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. super_admin passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether granted contains any of required.
func HasRole(granted []string, required ...string) bool {
	for _, has := range granted {
		if has == RoleSuperAdmin {
			return true
		}
		for _, r := range required {
			if has == r {
				return true
			}
		}
	}
	return false
}
