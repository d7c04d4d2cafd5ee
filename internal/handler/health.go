package handler // package handler contains the HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and container
// health checks.  It performs no checks of its own: answering at all means
// the process is up.
func Health(service string) echo.HandlerFunc {
	body := echo.Map{"status": "ok", "service": service}
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, body)
	}
}
