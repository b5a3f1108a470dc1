// Package handlers holds the HTTP surfaces. Handlers translate requests into
// service calls; permission and ownership checks live in the services.
package handlers

import (
	"net/http"
	"strconv"

	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/anonto42/linkup/backend/validators"
	"github.com/labstack/echo/v4"
)

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.NewInvalidInputError("invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return apperrors.NewInvalidInputError(validators.Describe(err))
	}
	return nil
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": data})
}

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func paramUint(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperrors.NewInvalidInputError("invalid " + name)
	}
	return uint(v), nil
}
