package handlers

import (
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ChatHandler handles direct messages between friends
type ChatHandler struct {
	chat *services.ChatService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// RegisterChatRoutes registers chat routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/chat/messages", h.SendMessage)
	g.GET("/chat/:peerId/messages", h.GetMessages)
}

// SendMessage sends a message to a friend
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req models.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := h.chat.SendMessage(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return err
	}
	return created(c, msg)
}

// GetMessages lists the conversation with a friend
func (h *ChatHandler) GetMessages(c echo.Context) error {
	msgs, err := h.chat.ListMessages(c.Request().Context(), middleware.ActorFrom(c), c.Param("peerId"), queryInt(c, "limit", 50))
	if err != nil {
		return err
	}
	return ok(c, msgs)
}
