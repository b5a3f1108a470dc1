package session

import (
	"context"
	"net/http"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"go.uber.org/zap"
)

// FriendLister resolves whose friend lists a presence change touches.
type FriendLister interface {
	GetFriendIDs(ctx context.Context, uid string) ([]string, error)
}

// Materializer derives profiles from identities. It relies on the store's
// create-if-absent primitive rather than locks, so concurrent logins for the
// same identity converge on one profile.
type Materializer struct {
	users     repositories.UserRepository
	friends   FriendLister
	presence  PresenceMirror
	publisher livequery.Publisher
	log       *zap.Logger
	now       func() time.Time
}

// NewMaterializer builds a Materializer. friends and presence may be nil.
func NewMaterializer(users repositories.UserRepository, friends FriendLister, presence PresenceMirror, publisher livequery.Publisher, log *zap.Logger) *Materializer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Materializer{
		users:     users,
		friends:   friends,
		presence:  presence,
		publisher: publisher,
		log:       log.Named("session"),
		now:       time.Now,
	}
}

// Materialize creates the profile on first login and marks it online on
// every later one. Role and counters of an existing profile are never
// written. Store failures return BACKEND_UNAVAILABLE and must not lead to a
// session being issued; a suspended profile returns FORBIDDEN.
func (m *Materializer) Materialize(ctx context.Context, id *Identity) (*models.User, bool, error) {
	if id == nil || id.UID == "" {
		metrics.SessionMaterializations.WithLabelValues("invalid_token").Inc()
		return nil, false, apperrors.WrapError(errNoIdentity, apperrors.ErrCodeUnauthenticated, "identity has no uid", http.StatusUnauthorized)
	}
	now := m.now()

	fresh := &models.User{
		ID:                   id.UID,
		Email:                id.Email,
		Name:                 id.Name,
		Avatar:               id.Picture,
		Role:                 permissions.RoleUser,
		NotificationSettings: models.DefaultNotificationSettings(),
		PrivacySettings:      models.DefaultPrivacySettings(),
		IsOnline:             true,
		LastActive:           now,
	}
	created, err := m.users.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, false, m.backendError(err, id.UID)
	}

	user, err := m.users.GetUserByID(ctx, id.UID)
	if err != nil {
		return nil, false, m.backendError(err, id.UID)
	}
	// A suspended profile keeps the presence the suspension left it with.
	if user.IsSuspended {
		metrics.SessionMaterializations.WithLabelValues("suspended").Inc()
		return user, created, apperrors.NewForbiddenError("account suspended")
	}
	if !created {
		if err := m.users.SetPresence(ctx, id.UID, true, now); err != nil {
			return nil, false, m.backendError(err, id.UID)
		}
		user.IsOnline = true
		user.LastActive = now
	}

	m.mirror(ctx, id.UID, true, now)
	m.publishPresence(ctx, id.UID)

	outcome := "updated"
	if created {
		outcome = "created"
	}
	metrics.SessionMaterializations.WithLabelValues(outcome).Inc()
	m.log.Info("session materialized", zap.String("uid", id.UID), zap.Bool("created", created))
	return user, created, nil
}

// Logout records the offline transition. It runs before the session itself is
// torn down and never fails: presence errors are logged and swallowed so the
// caller always proceeds to revoke the session.
func (m *Materializer) Logout(ctx context.Context, uid string) {
	now := m.now()
	if err := m.users.SetPresence(ctx, uid, false, now); err != nil {
		m.log.Warn("presence offline write failed", zap.String("uid", uid), zap.Error(err))
	}
	m.mirror(ctx, uid, false, now)
	m.publishPresence(ctx, uid)
}

func (m *Materializer) publishPresence(ctx context.Context, uid string) {
	var friends []string
	if m.friends != nil {
		ids, err := m.friends.GetFriendIDs(ctx, uid)
		if err != nil {
			m.log.Warn("friend lookup failed; friend lists not refreshed", zap.String("uid", uid), zap.Error(err))
		}
		friends = ids
	}
	m.publisher.Publish(ctx, livequery.PresenceTopics(uid, friends)...)
}

func (m *Materializer) mirror(ctx context.Context, uid string, online bool, at time.Time) {
	if m.presence == nil {
		return
	}
	if err := m.presence.SetPresence(ctx, uid, online, at); err != nil {
		m.log.Warn("presence mirror write failed", zap.String("uid", uid), zap.Bool("online", online), zap.Error(err))
	}
}

func (m *Materializer) backendError(err error, uid string) error {
	metrics.SessionMaterializations.WithLabelValues("backend_error").Inc()
	m.log.Error("profile store unavailable during materialization", zap.String("uid", uid), zap.Error(err))
	return apperrors.NewBackendUnavailableError(err, "profile store unavailable")
}
