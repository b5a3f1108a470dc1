package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/session"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type sessionRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// SessionView is returned by the exchange and /me endpoints.
type SessionView struct {
	User        *models.User             `json:"user"`
	Permissions []permissions.Permission `json:"permissions"`
	Created     bool                     `json:"created,omitempty"`
}

// AuthHandler exchanges identity tokens for session cookies.
type AuthHandler struct {
	identities   session.IdentityVerifier
	materializer *session.Materializer
	sessions     *session.Manager
	auth         *middleware.Authenticator
	secure       bool
	log          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. secure marks the cookie Secure
// and should be set in production.
func NewAuthHandler(identities session.IdentityVerifier, materializer *session.Materializer, sessions *session.Manager, auth *middleware.Authenticator, secure bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identities:   identities,
		materializer: materializer,
		sessions:     sessions,
		auth:         auth,
		secure:       secure,
		log:          log.Named("auth"),
	}
}

// RegisterAuthRoutes registers the session exchange routes. limit throttles
// the exchange.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group, limit echo.MiddlewareFunc) {
	g.POST("/session", h.CreateSession, limit)
	g.DELETE("/session", h.DeleteSession)
}

// CreateSession verifies an identity token, materializes the profile and
// sets the session cookie. No cookie is set when any step fails.
func (h *AuthHandler) CreateSession(c echo.Context) error {
	var req sessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	id, err := h.identities.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return err
	}
	user, created, err := h.materializer.Materialize(ctx, id)
	if err != nil {
		return err
	}

	token, claims, err := h.sessions.Issue(user.ID)
	if err != nil {
		return apperrors.NewInternalError(err, "could not issue session")
	}
	c.SetCookie(h.cookie(token, claims.ExpiresAt.Time, int(h.sessions.TTL().Seconds())))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{
		"success": true,
		"data": SessionView{
			User:        user,
			Permissions: permissions.PermissionsOf(user.Role),
			Created:     created,
		},
	})
}

// DeleteSession logs out: presence goes offline first, then the session is
// revoked and the cookie cleared. Presence failures never block logout.
func (h *AuthHandler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	uid, claims, err := h.auth.Identify(ctx, c.Request())
	if err == nil {
		h.materializer.Logout(ctx, uid)
		if claims != nil {
			if err := h.sessions.Revoke(ctx, claims); err != nil {
				h.log.Warn("session revocation failed", zap.String("uid", uid), zap.Error(err))
			}
		}
	} else if !apperrors.HasCode(err, apperrors.ErrCodeUnauthenticated) {
		h.log.Warn("logout without a resolvable session", zap.Error(err))
	}

	c.SetCookie(h.cookie("", time.Unix(0, 0), -1))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHandler) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.auth.CookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
