package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves the home feed as a one-shot read. Live updates go
// through the realtime gateway's "feed" stream.
type FeedHandler struct {
	posts *services.PostService
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(posts *services.PostService) *FeedHandler {
	return &FeedHandler{posts: posts}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// GetFeed returns public posts plus friends-only posts of the caller's friends
func (h *FeedHandler) GetFeed(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	posts, err := h.posts.FeedQuery(actor.ID, queryInt(c, "limit", 20)).Fetch(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, posts)
}
