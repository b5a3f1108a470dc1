package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles profile requests
type UserHandler struct {
	profiles *services.ProfileService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles *services.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// RegisterUserRoutes registers profile routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/me", h.Me)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
}

// Me returns the caller's profile and the permissions of its current role
func (h *UserHandler) Me(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	user, err := h.profiles.Me(c.Request().Context(), actor.ID)
	if err != nil {
		return err
	}
	return ok(c, SessionView{User: user, Permissions: permissions.PermissionsOf(user.Role)})
}

// UpdateProfile updates the caller's own profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.profiles.Update(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// GetUser returns another user's profile, redacted by their privacy settings
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.profiles.Get(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, user)
}

// SearchUsers finds users by name or email
func (h *UserHandler) SearchUsers(c echo.Context) error {
	users, err := h.profiles.Search(c.Request().Context(), c.QueryParam("q"), queryInt(c, "limit", 20))
	if err != nil {
		return err
	}
	return ok(c, users)
}
