package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/internal/session"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/anonto42/linkup/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

// Principal is the verified caller of one request. Role comes from the
// profile loaded for this request, never from token claims.
type Principal struct {
	User *models.User
	// Claims is nil when the caller presented an identity token instead
	// of a session token.
	Claims *session.Claims
}

func (p *Principal) Actor() services.Actor {
	return services.Actor{ID: p.User.ID, Role: p.User.Role}
}

// Authenticator resolves the session cookie or Bearer token of a request
// into a Principal.
type Authenticator struct {
	sessions   *session.Manager
	identities session.IdentityVerifier
	users      repositories.UserRepository
	cookieName string
}

// NewAuthenticator builds an Authenticator. identities may be nil, in which
// case only session tokens are accepted.
func NewAuthenticator(sessions *session.Manager, identities session.IdentityVerifier, users repositories.UserRepository, cookieName string) *Authenticator {
	return &Authenticator{sessions: sessions, identities: identities, users: users, cookieName: cookieName}
}

func (a *Authenticator) CookieName() string { return a.cookieName }

// Authenticate verifies the request's credentials and loads the profile.
// Expiry and revocation are checked on every call.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	uid, claims, err := a.Identify(ctx, r)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NewUnauthenticatedError("no profile for this identity, sign in first")
		}
		return nil, apperrors.NewBackendUnavailableError(err, "profile store unavailable")
	}
	if user.IsSuspended {
		return nil, apperrors.NewForbiddenError("account suspended")
	}
	return &Principal{User: user, Claims: claims}, nil
}

// Identify verifies the request's credentials without touching the profile
// store. Claims is nil for identity-provider tokens.
func (a *Authenticator) Identify(ctx context.Context, r *http.Request) (string, *session.Claims, error) {
	token, bearer := a.credentials(r)
	if token == "" {
		return "", nil, apperrors.NewUnauthenticatedError("authentication required")
	}
	return a.verify(ctx, token, bearer)
}

func (a *Authenticator) verify(ctx context.Context, token string, bearer bool) (string, *session.Claims, error) {
	claims, err := a.sessions.Verify(ctx, token)
	if err == nil {
		return claims.UID(), claims, nil
	}
	if !bearer || a.identities == nil || !apperrors.HasCode(err, apperrors.ErrCodeUnauthenticated) {
		return "", nil, err
	}

	// not a session token; try it as an identity-provider token
	id, idErr := a.identities.VerifyIDToken(ctx, token)
	if idErr != nil {
		if apperrors.HasCode(idErr, apperrors.ErrCodeBackendUnavailable) {
			return "", nil, idErr
		}
		return "", nil, err
	}
	return id.UID, nil, nil
}

// credentials prefers the Authorization header over the cookie.
func (a *Authenticator) credentials(r *http.Request) (token string, bearer bool) {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1]), true
		}
		return "", false
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return c.Value, false
	}
	return "", false
}

// RequireAuth rejects requests without a valid session and stores the
// Principal on the echo context.
func RequireAuth(a *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			p, err := a.Authenticate(req.Context(), req)
			if err != nil {
				return err
			}
			c.Set(principalKey, p)
			c.SetRequest(req.WithContext(logger.WithUserID(req.Context(), p.User.ID)))
			return next(c)
		}
	}
}

// RequirePermission gates a route on a capability of the role loaded by
// RequireAuth. It must run after RequireAuth.
func RequirePermission(p permissions.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFrom(c)
			if !ok {
				return apperrors.NewUnauthenticatedError("authentication required")
			}
			if !permissions.HasPermission(principal.User.Role, p) {
				metrics.AuthzDenied.WithLabelValues(string(principal.User.Role), string(p)).Inc()
				return apperrors.NewForbiddenError("missing permission: " + string(p))
			}
			return next(c)
		}
	}
}

func PrincipalFrom(c echo.Context) (*Principal, bool) {
	p, ok := c.Get(principalKey).(*Principal)
	return p, ok && p != nil
}

// ActorFrom returns the caller of an authenticated route.
func ActorFrom(c echo.Context) services.Actor {
	if p, ok := PrincipalFrom(c); ok {
		return p.Actor()
	}
	return services.Actor{}
}
