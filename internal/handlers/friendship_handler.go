package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FriendshipHandler handles friend requests and friend lists
type FriendshipHandler struct {
	friends *services.FriendService
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(friends *services.FriendService) *FriendshipHandler {
	return &FriendshipHandler{friends: friends}
}

// RegisterFriendshipRoutes registers friendship routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/friends/requests", h.SendFriendRequest)
	g.GET("/friends/requests", h.GetPendingRequests)
	g.PUT("/friends/requests/:id", h.RespondToFriendRequest)
	g.GET("/friends", h.GetFriends)
	g.DELETE("/friends/:id", h.Unfriend)
}

// SendFriendRequest sends a friend request
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	var req models.CreateFriendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	fr, err := h.friends.SendRequest(c.Request().Context(), middleware.ActorFrom(c), req.ReceiverID)
	if err != nil {
		return err
	}
	return created(c, fr)
}

// RespondToFriendRequest accepts or rejects a pending request
func (h *FriendshipHandler) RespondToFriendRequest(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}
	var req models.UpdateFriendRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	fr, err := h.friends.Respond(c.Request().Context(), middleware.ActorFrom(c), id, req.Status)
	if err != nil {
		return err
	}
	return ok(c, fr)
}

// GetPendingRequests lists requests waiting for the caller's answer
func (h *FriendshipHandler) GetPendingRequests(c echo.Context) error {
	pending, err := h.friends.ListPending(c.Request().Context(), middleware.ActorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, pending)
}

// GetFriends lists the caller's friends
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	friends, err := h.friends.ListFriends(c.Request().Context(), middleware.ActorFrom(c).ID)
	if err != nil {
		return err
	}
	return ok(c, friends)
}

// Unfriend removes an accepted friendship
func (h *FriendshipHandler) Unfriend(c echo.Context) error {
	if err := h.friends.Unfriend(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		return err
	}
	return ok(c, echo.Map{"removed": true})
}
