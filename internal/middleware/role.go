package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireStaff aborts with 403 unless BearerAuth marked the caller as staff.
// It must be registered after BearerAuth.
func RequireStaff() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if staff, ok := c.Get(keyIsStaff).(bool); !ok || !staff {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
