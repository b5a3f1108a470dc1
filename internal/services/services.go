// Package services holds the feature services. Each exposes live queries
// (Query constructors plus Subscribe helpers) and the mutations that
// invalidate them. Every mutation re-checks the caller's permission here,
// whatever the HTTP layer already did.
package services

import (
	"context"
	"errors"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"go.uber.org/zap"
)

// Actor is the caller of a mutation, with the role resolved from the
// profile store for this request.
type Actor struct {
	ID   string
	Role permissions.Role
}

func (a Actor) Can(p permissions.Permission) bool {
	return permissions.HasPermission(a.Role, p)
}

// Emitter receives committed mutations for the background triggers.
type Emitter interface {
	Emit(ctx context.Context, ev jobs.Event)
}

type discardEvents struct{}

func (discardEvents) Emit(context.Context, jobs.Event) {}

type Deps struct {
	Users         repositories.UserRepository
	Posts         repositories.PostRepository
	Comments      repositories.CommentRepository
	Likes         repositories.LikeRepository
	Saved         repositories.SavedPostRepository
	Friends       repositories.FriendshipRepository
	Notifications repositories.NotificationRepository
	Stories       repositories.StoryRepository
	Chats         repositories.ChatRepository
	Broker        *livequery.Broker
	Events        Emitter
	Log           *zap.Logger
}

// Services bundles every feature service built from one Deps.
type Services struct {
	Profiles      *ProfileService
	Posts         *PostService
	Chat          *ChatService
	Friends       *FriendService
	Notifications *NotificationService
	Stories       *StoryService
	Dashboard     *DashboardService
	Admin         *AdminService
}

func New(d Deps) *Services {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = discardEvents{}
	}
	posts := NewPostService(d)
	friends := NewFriendService(d)
	notifications := NewNotificationService(d)
	return &Services{
		Profiles:      NewProfileService(d),
		Posts:         posts,
		Chat:          NewChatService(d),
		Friends:       friends,
		Notifications: notifications,
		Stories:       NewStoryService(d),
		Dashboard:     NewDashboardService(d, posts, friends, notifications),
		Admin:         NewAdminService(d, posts, notifications),
	}
}

func authorize(a Actor, p permissions.Permission) error {
	if a.Can(p) {
		return nil
	}
	metricsDenied(a, p)
	return apperrors.NewForbiddenError("missing permission: " + string(p))
}

func metricsDenied(a Actor, p permissions.Permission) {
	metrics.AuthzDenied.WithLabelValues(string(a.Role), string(p)).Inc()
}

// storeError classifies a repository error for the HTTP layer.
func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, repositories.ErrInvalidID):
		return apperrors.NewNotFoundError(resource)
	case errors.Is(err, repositories.ErrAlreadyExists):
		return apperrors.NewConflictError(resource + " already exists")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.NewBackendUnavailableError(err, "failed to access "+resource)
	}
}

// compactUsers loads author/actor cards keyed by id.
func compactUsers(ctx context.Context, users repositories.UserRepository, ids []string) (map[string]models.UserCompact, error) {
	out := make(map[string]models.UserCompact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := users.GetUsersByIDs(ctx, unique(ids))
	if err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].ID] = list[i].ToCompact()
	}
	return out, nil
}

// friendIDs lists uid's friends for topic fan-out. A failed lookup is logged
// and yields none, so only uid's own topics refresh.
func friendIDs(ctx context.Context, d Deps, uid string) []string {
	ids, err := d.Friends.GetFriendIDs(ctx, uid)
	if err != nil {
		d.Log.Warn("friend lookup failed; friend topics not refreshed", zap.String("user_id", uid), zap.Error(err))
		return nil
	}
	return ids
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
