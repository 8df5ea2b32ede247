package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequirePermission returns middleware that checks if the user holds at
// least one of the given permissions.
func RequirePermission(perms ...Permission) echo.MiddlewareFunc {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted := PermissionsFromContext(c.Request().Context())
			for _, required := range perms {
				if HasPermission(granted, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required permission: %s", strings.Join(names, " or ")))
		}
	}
}
