package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/services"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/labstack/echo/v4"
)

// AdminHandler serves the moderation and user management surfaces. Every
// route is gated by a permission here and checked again in AdminService.
type AdminHandler struct {
	admin *services.AdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// RegisterAdminRoutes registers admin routes on a group that already
// requires authentication
func (h *AdminHandler) RegisterAdminRoutes(g *echo.Group) {
	g.GET("/users", h.ListUsers, middleware.RequirePermission(permissions.ViewUsers))
	g.PUT("/users/:id/role", h.SetRole, middleware.RequirePermission(permissions.ManageRoles))
	g.PUT("/users/:id/suspension", h.SetSuspension, middleware.RequirePermission(permissions.ManageUsers))
	g.DELETE("/posts/:id", h.DeletePost, middleware.RequirePermission(permissions.ModerateContent))
	g.POST("/notifications/bulk", h.SendBulkNotification, middleware.RequirePermission(permissions.SendBulkNotifications))
	g.GET("/analytics", h.Analytics, middleware.RequirePermission(permissions.ViewAnalytics))
}

// ListUsers pages through users with optional search and role filters
func (h *AdminHandler) ListUsers(c echo.Context) error {
	q := repositories.UserQuery{
		Search: c.QueryParam("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	if r := c.QueryParam("role"); r != "" {
		role, valid := permissions.ParseRole(r)
		if !valid {
			return apperrors.NewInvalidInputError("unknown role " + r)
		}
		q.Role = role
	}
	page, err := h.admin.ListUsers(c.Request().Context(), middleware.ActorFrom(c), q)
	if err != nil {
		return err
	}
	return ok(c, page)
}

// SetRole changes a user's role
func (h *AdminHandler) SetRole(c echo.Context) error {
	var req models.UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.SetRole(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), req.Role)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// SetSuspension suspends or reinstates a user
func (h *AdminHandler) SetSuspension(c echo.Context) error {
	var req models.UpdateSuspensionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.admin.SetSuspension(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), req.Suspended)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// DeletePost removes any post
func (h *AdminHandler) DeletePost(c echo.Context) error {
	if err := h.admin.DeletePost(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		return err
	}
	return ok(c, echo.Map{"deleted": true})
}

// SendBulkNotification notifies every user, or every user of one role
func (h *AdminHandler) SendBulkNotification(c echo.Context) error {
	var req models.BulkNotificationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.admin.SendBulk(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"recipients": n})
}

// Analytics returns user, presence and post counts
func (h *AdminHandler) Analytics(c echo.Context) error {
	a, err := h.admin.Analytics(c.Request().Context(), middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return ok(c, a)
}
