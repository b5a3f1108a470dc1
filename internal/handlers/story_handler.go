package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	stories *services.StoryService
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(stories *services.StoryService) *StoryHandler {
	return &StoryHandler{stories: stories}
}

// RegisterStoryRoutes registers story-related routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.GET("/stories", h.GetStories)
	g.POST("/stories", h.CreateStory)
	g.POST("/stories/:id/seen", h.MarkSeen)
	g.POST("/stories/:id/react", h.React)
}

// GetStories lists active stories of the caller and their friends
func (h *StoryHandler) GetStories(c echo.Context) error {
	stories, err := h.stories.List(c.Request().Context(), middleware.ActorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, stories)
}

// CreateStory adds an item to the caller's story
func (h *StoryHandler) CreateStory(c echo.Context) error {
	var req models.CreateStoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	story, err := h.stories.CreateStory(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return err
	}
	return created(c, story)
}

// MarkSeen records that the caller viewed a story
func (h *StoryHandler) MarkSeen(c echo.Context) error {
	if err := h.stories.MarkSeen(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		return err
	}
	return ok(c, echo.Map{"seen": true})
}

// React sends a reaction to the story's owner
func (h *StoryHandler) React(c echo.Context) error {
	var req models.StoryReactionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.stories.React(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), req.Reaction); err != nil {
		return err
	}
	return ok(c, echo.Map{"reacted": true})
}
