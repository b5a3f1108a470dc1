package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupMiddleware installs the global echo middleware that only depends on
// configuration: panic recovery, request ids, CORS and body limits.
func SetupMiddleware(e *echo.Echo, cfg *Config) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	origins := cfg.CORSOrigins
	if len(origins) == 0 && cfg.PublicAppURL != "" {
		origins = []string{cfg.PublicAppURL}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: origins[0] != "*",
	}))

	// Uploads carry at most one 50 MiB video plus multipart framing.
	e.Use(middleware.BodyLimit("60M"))
}
