package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories/memory"
	"github.com/anonto42/linkup/backend/internal/session"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "0123456789abcdef0123456789abcdef"

type fakeIdentities struct {
	tokens map[string]string
	err    error
}

func (f *fakeIdentities) VerifyIDToken(_ context.Context, token string) (*session.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	uid, ok := f.tokens[token]
	if !ok {
		return nil, apperrors.NewUnauthenticatedError("invalid identity token")
	}
	return &session.Identity{UID: uid}, nil
}

func (f *fakeIdentities) RevokeSessions(context.Context, string) error { return nil }

type authFixture struct {
	users      *memory.UserStore
	manager    *session.Manager
	identities *fakeIdentities
	auth       *Authenticator
	e          *echo.Echo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tokens, err := session.NewTokens(secret, time.Hour)
	require.NoError(t, err)
	f := &authFixture{
		users:      memory.NewUserStore(),
		manager:    session.NewManager(tokens, session.NewMemoryRevocations()),
		identities: &fakeIdentities{tokens: map[string]string{}},
	}
	f.auth = NewAuthenticator(f.manager, f.identities, f.users, "session")

	f.e = echo.New()
	f.e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	g := f.e.Group("/api", RequireAuth(f.auth))
	g.GET("/whoami", func(c echo.Context) error {
		a := ActorFrom(c)
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"id": a.ID, "role": a.Role}})
	})
	g.GET("/admin", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	}, RequirePermission(permissions.ViewUsers))
	return f
}

func (f *authFixture) addUser(id string, role permissions.Role, suspended bool) {
	f.users.Put(models.User{ID: id, Name: id, Role: role, IsSuspended: suspended})
}

func (f *authFixture) issue(t *testing.T, uid string) (string, *session.Claims) {
	t.Helper()
	tok, claims, err := f.manager.Issue(uid)
	require.NoError(t, err)
	return tok, claims
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *authFixture) do(t *testing.T, path string, mutate func(*http.Request)) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func TestRequireAuth_Credentials(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("alice", permissions.RoleUser, false)
	f.addUser("sus", permissions.RoleUser, true)
	aliceTok, _ := f.issue(t, "alice")
	susTok, _ := f.issue(t, "sus")
	ghostTok, _ := f.issue(t, "ghost")
	f.identities.tokens["firebase-alice"] = "alice"

	cases := []struct {
		name   string
		mutate func(*http.Request)
		status int
		code   apperrors.ErrorCode
	}{
		{"no credentials", nil, http.StatusUnauthorized, apperrors.ErrCodeUnauthenticated},
		{"bearer session", bearer(aliceTok), http.StatusOK, ""},
		{"cookie session", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "session", Value: aliceTok})
		}, http.StatusOK, ""},
		{"identity token", bearer("firebase-alice"), http.StatusOK, ""},
		{"garbage token", bearer("nope"), http.StatusUnauthorized, apperrors.ErrCodeUnauthenticated},
		{"basic scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic abc")
		}, http.StatusUnauthorized, apperrors.ErrCodeUnauthenticated},
		{"suspended", bearer(susTok), http.StatusForbidden, apperrors.ErrCodeForbidden},
		{"no profile", bearer(ghostTok), http.StatusUnauthorized, apperrors.ErrCodeUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := f.do(t, "/api/whoami", tc.mutate)
			assert.Equal(t, tc.status, status)
			if tc.code != "" {
				assert.False(t, env.Success)
				assert.Equal(t, string(tc.code), env.Error)
				assert.Empty(t, env.Data)
			} else {
				assert.True(t, env.Success)
			}
		})
	}
}

func TestRequireAuth_RevokedSession(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("alice", permissions.RoleUser, false)
	tok, claims := f.issue(t, "alice")
	require.NoError(t, f.manager.Revoke(context.Background(), claims))

	status, env := f.do(t, "/api/whoami", bearer(tok))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(apperrors.ErrCodeUnauthenticated), env.Error)
}

func TestRequireAuth_IdentityProviderDownIsNotUnauthenticated(t *testing.T) {
	f := newAuthFixture(t)
	f.identities.err = apperrors.NewBackendUnavailableError(errors.New("dial tcp"), "identity provider unavailable")

	status, env := f.do(t, "/api/whoami", bearer("firebase-token"))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, string(apperrors.ErrCodeBackendUnavailable), env.Error)
}

func TestRequireAuth_RoleLoadedPerRequest(t *testing.T) {
	f := newAuthFixture(t)
	f.addUser("alice", permissions.RoleUser, false)
	tok, _ := f.issue(t, "alice")

	status, _ := f.do(t, "/api/admin", bearer(tok))
	assert.Equal(t, http.StatusForbidden, status)

	require.NoError(t, f.users.SetRole(context.Background(), "alice", permissions.RoleSupport))
	status, _ = f.do(t, "/api/admin", bearer(tok))
	assert.Equal(t, http.StatusOK, status)
}

func TestRequirePermission_WithoutAuth(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequirePermission(permissions.ViewUsers))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(1, 2))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestRateLimiterStore_SweepsIdleClients(t *testing.T) {
	s := newRateLimiterStore(1, 1)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	assert.True(t, s.allow("a"))
	assert.False(t, s.allow("a"))

	now = now.Add(limiterIdle + 2*time.Minute)
	assert.True(t, s.allow("b"))
	s.mu.Lock()
	_, kept := s.limiters["a"]
	s.mu.Unlock()
	assert.False(t, kept)
}

func TestErrorHandler_Envelope(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"app error", apperrors.NewConflictError("already pending"), http.StatusConflict, apperrors.ErrCodeConflict},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"echo too large", echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, apperrors.ErrCodeInvalidInput},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
		{"wrapped backend", errors.Join(errors.New("ctx"), apperrors.NewBackendUnavailableError(nil, "down")), http.StatusServiceUnavailable, apperrors.ErrCodeBackendUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
			e.GET("/x", func(echo.Context) error { return tc.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.status, rec.Code)

			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, string(tc.code), env.Error)
			assert.NotEmpty(t, env.Message)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestRequireConfigured(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.GET("/open", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireConfigured(nil))
	e.GET("/closed", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireConfigured([]string{"MONGO_URI"}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/closed", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperrors.ErrCodeBackendNotConfigured))
	assert.Contains(t, rec.Body.String(), "MONGO_URI")
}
