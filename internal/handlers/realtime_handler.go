package handlers

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/realtime"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// RealtimeHandler upgrades browsers to the live query WebSocket
type RealtimeHandler struct {
	gateway *realtime.Gateway
	auth    *middleware.Authenticator
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(gateway *realtime.Gateway, auth *middleware.Authenticator) *RealtimeHandler {
	return &RealtimeHandler{gateway: gateway, auth: auth}
}

// RegisterRealtimeRoutes registers the WebSocket route
func (h *RealtimeHandler) RegisterRealtimeRoutes(g *echo.Group) {
	g.GET("/ws", h.Connect)
}

// Connect authenticates the handshake and hands the socket to the gateway.
// The same request's credentials are re-verified on every subscribe.
func (h *RealtimeHandler) Connect(c echo.Context) error {
	req := c.Request()
	resolve := func(ctx context.Context) (services.Actor, error) {
		p, err := h.auth.Authenticate(ctx, req)
		if err != nil {
			return services.Actor{}, err
		}
		return p.Actor(), nil
	}
	return h.gateway.Handle(c.Response(), req, resolve)
}
