package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

// Claims carries only the subject and token id. The role is never part of a
// session token; it is loaded from the profile store on every request.
type Claims struct {
	jwt.RegisteredClaims
}

func (c *Claims) UID() string { return c.Subject }

// Tokens signs and verifies HS256 session tokens with an absolute expiry.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

func (t *Tokens) Issue(uid string) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm and expiry. Errors are UNAUTHENTICATED.
func (t *Tokens) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		msg := "invalid session token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "session expired"
		}
		return nil, apperrors.WrapError(err, apperrors.ErrCodeUnauthenticated, msg, http.StatusUnauthorized)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, apperrors.NewUnauthenticatedError("invalid session token")
	}
	return claims, nil
}

// Manager combines token verification with the revocation list.
type Manager struct {
	tokens  *Tokens
	revoked Revocations
}

func NewManager(tokens *Tokens, revoked Revocations) *Manager {
	return &Manager{tokens: tokens, revoked: revoked}
}

func (m *Manager) TTL() time.Duration { return m.tokens.TTL() }

func (m *Manager) Issue(uid string) (string, *Claims, error) {
	return m.tokens.Issue(uid)
}

// Verify rejects expired, tampered and revoked tokens. A revocation store
// that cannot be consulted fails closed with BACKEND_UNAVAILABLE.
func (m *Manager) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError(err, "session store unavailable")
	}
	if revoked {
		return nil, apperrors.NewUnauthenticatedError("session revoked")
	}
	return claims, nil
}

func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return m.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
