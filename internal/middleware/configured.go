package middleware

import (
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/labstack/echo/v4"
)

// RequireConfigured answers every request with 503 BACKEND_NOT_CONFIGURED
// while required settings are missing.
func RequireConfigured(missing []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(missing) == 0 {
			return next
		}
		return func(c echo.Context) error {
			return apperrors.NewBackendNotConfiguredError(missing)
		}
	}
}
