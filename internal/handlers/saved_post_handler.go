package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles saved post requests
type SavedPostHandler struct {
	posts *services.PostService
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(posts *services.PostService) *SavedPostHandler {
	return &SavedPostHandler{posts: posts}
}

// RegisterSavedPostRoutes registers saved post routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.POST("/posts/:id/save", h.ToggleSave)
	g.GET("/saved", h.GetSavedPosts)
}

// ToggleSave saves or unsaves a post for the caller
func (h *SavedPostHandler) ToggleSave(c echo.Context) error {
	res, err := h.posts.ToggleSave(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	return toggleResponse(c, res)
}

// GetSavedPosts lists the caller's saved posts
func (h *SavedPostHandler) GetSavedPosts(c echo.Context) error {
	posts, err := h.posts.SavedPosts(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return ok(c, posts)
}
