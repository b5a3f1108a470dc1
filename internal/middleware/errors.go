package middleware

import (
	"errors"
	"net/http"

	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/anonto42/linkup/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders every error as {"success": false, "error": code,
// "message": msg}. Server-side failures are logged with their cause; the
// cause is never sent to the client.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	cl := logger.NewContextLogger(log)
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		appErr := toAppError(err)

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			cl.WithContext(c.Request().Context()).Error("request failed",
				zap.String("code", string(appErr.Code)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		body := echo.Map{
			"success": false,
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if missing, ok := appErr.Context["missing"]; ok {
			body["missing"] = missing
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(appErr.HTTPStatus)
		} else {
			err = c.JSON(appErr.HTTPStatus, body)
		}
		if err != nil {
			cl.WithContext(c.Request().Context()).Warn("write error response", zap.Error(err))
		}
	}
}

func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return apperrors.NewAppError(codeForStatus(he.Code), msg, he.Code)
	}
	return apperrors.NewInternalError(err, "internal server error")
}

func codeForStatus(status int) apperrors.ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return apperrors.ErrCodeUnauthenticated
	case http.StatusForbidden:
		return apperrors.ErrCodeForbidden
	case http.StatusNotFound:
		return apperrors.ErrCodeNotFound
	case http.StatusConflict:
		return apperrors.ErrCodeConflict
	case http.StatusTooManyRequests:
		return apperrors.ErrCodeRateLimit
	case http.StatusServiceUnavailable:
		return apperrors.ErrCodeBackendUnavailable
	}
	if status >= 400 && status < 500 {
		return apperrors.ErrCodeInvalidInput
	}
	return apperrors.ErrCodeInternal
}
