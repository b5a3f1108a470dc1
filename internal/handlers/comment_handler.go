package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	posts *services.PostService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(posts *services.PostService) *CommentHandler {
	return &CommentHandler{posts: posts}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:id/comments", h.CreateComment)
	g.GET("/posts/:id/comments", h.GetComments)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// CreateComment adds a comment to a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.posts.AddComment(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return created(c, comment)
}

// GetComments lists a post's comments, newest first
func (h *CommentHandler) GetComments(c echo.Context) error {
	comments, err := h.posts.ListComments(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		return err
	}
	return ok(c, comments)
}

// DeleteComment removes a comment written by the caller
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}
	if err := h.posts.DeleteComment(c.Request().Context(), middleware.ActorFrom(c), id); err != nil {
		return err
	}
	return ok(c, echo.Map{"deleted": true})
}
