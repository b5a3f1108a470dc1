package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthReport feeds the health endpoint.
type HealthReport struct {
	Missing     []string
	Connections func() int
	Media       func() string
}

// HealthCheck reports "ok", or "not_configured" while required settings
// are missing. It always answers 200 so orchestrators can tell a
// misconfigured process from a dead one.
func HealthCheck(r HealthReport) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := echo.Map{
			"status":  "ok",
			"service": "linkup-backend",
		}
		if len(r.Missing) > 0 {
			body["status"] = "not_configured"
			body["missing"] = r.Missing
		}
		if r.Connections != nil {
			body["realtime_connections"] = r.Connections()
		}
		if r.Media != nil {
			body["media"] = r.Media()
		}
		return c.JSON(http.StatusOK, body)
	}
}
