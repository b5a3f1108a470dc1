// Package session turns verified identities into profiles and issues the
// signed, absolutely-expiring session tokens used on every later request.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"firebase.google.com/go/v4/auth"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

// Identity is the externally managed principal behind a profile.
type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier checks identity-provider tokens. Implementations return an
// UNAUTHENTICATED AppError for bad tokens and BACKEND_UNAVAILABLE when the
// provider itself could not be reached.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
	RevokeSessions(ctx context.Context, uid string) error
}

type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, apperrors.NewUnauthenticatedError("identity token is required")
	}
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if auth.IsCertificateFetchFailed(err) {
			return nil, apperrors.NewBackendUnavailableError(err, "identity provider unavailable")
		}
		return nil, apperrors.WrapError(err, apperrors.ErrCodeUnauthenticated, "invalid or expired identity token", http.StatusUnauthorized)
	}
	return identityFromClaims(token.UID, token.Claims), nil
}

// RevokeSessions revokes the identity's refresh tokens at the provider so
// other devices must sign in again.
func (v *FirebaseVerifier) RevokeSessions(ctx context.Context, uid string) error {
	if err := v.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("revoke refresh tokens for %s: %w", uid, err)
	}
	return nil
}

func identityFromClaims(uid string, claims map[string]interface{}) *Identity {
	id := &Identity{UID: uid}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	id.Picture, _ = claims["picture"].(string)
	if id.Name == "" && id.Email != "" {
		id.Name = id.Email
	}
	return id
}

var errNoIdentity = errors.New("identity has no uid")
