package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/services"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles like toggles
type LikeHandler struct {
	posts *services.PostService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(posts *services.PostService) *LikeHandler {
	return &LikeHandler{posts: posts}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/like", h.ToggleLike)
}

// ToggleLike likes or unlikes a post
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	res, err := h.posts.ToggleLike(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	return toggleResponse(c, res)
}

// toggleResponse always carries the confirmed state. A failed write is
// reported with the rolled-back state so the client can restore its view.
func toggleResponse(c echo.Context, res services.ToggleResult) error {
	if res.Err == nil {
		return ok(c, res)
	}
	appErr := apperrors.GetAppError(res.Err)
	if appErr == nil {
		appErr = apperrors.NewInternalError(res.Err, "could not save change")
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, echo.Map{
		"success": false,
		"error":   string(appErr.Code),
		"message": appErr.Message,
		"data":    res,
	})
}
