package services

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"go.uber.org/zap"
)

type UserPage struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type Analytics struct {
	TotalUsers  int64 `json:"total_users"`
	OnlineUsers int64 `json:"online_users"`
	TotalPosts  int64 `json:"total_posts"`
	PostsToday  int64 `json:"posts_today"`
}

// AdminService backs the moderation surfaces. Each operation checks the
// actor's permission and, for user management, the rank of the target.
type AdminService struct {
	d             Deps
	posts         *PostService
	notifications *NotificationService
	log           *zap.Logger
}

func NewAdminService(d Deps, posts *PostService, notifications *NotificationService) *AdminService {
	return &AdminService{d: d, posts: posts, notifications: notifications, log: d.Log.Named("admin")}
}

func (s *AdminService) ListUsers(ctx context.Context, actor Actor, q repositories.UserQuery) (*UserPage, error) {
	if err := authorize(actor, permissions.ViewUsers); err != nil {
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	q.Limit = clampLimit(q.Limit, 20, 100)
	users, total, err := s.d.Users.ListUsers(ctx, q)
	if err != nil {
		return nil, storeError(err, "users")
	}
	return &UserPage{Users: users, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *AdminService) SetRole(ctx context.Context, actor Actor, targetID, role string) (*models.User, error) {
	if err := authorize(actor, permissions.ManageRoles); err != nil {
		return nil, err
	}
	newRole, ok := permissions.ParseRole(role)
	if !ok {
		return nil, apperrors.NewInvalidInputError("unknown role: " + role)
	}
	if targetID == actor.ID {
		return nil, apperrors.NewForbiddenError("you cannot change your own role")
	}
	target, err := s.d.Users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !permissions.CanAssignRole(actor.Role, target.Role, newRole) {
		metricsDenied(actor, permissions.ManageRoles)
		return nil, apperrors.NewForbiddenError("you cannot assign this role to this user")
	}
	if err := s.d.Users.SetRole(ctx, targetID, newRole); err != nil {
		return nil, storeError(err, "user")
	}
	s.log.Info("role changed",
		zap.String("actor", actor.ID),
		zap.String("target", targetID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(newRole)))
	target.Role = newRole
	s.d.Broker.Publish(ctx, livequery.ProfileTopic(targetID))
	return target, nil
}

func (s *AdminService) SetSuspension(ctx context.Context, actor Actor, targetID string, suspended bool) (*models.User, error) {
	if targetID == actor.ID {
		return nil, apperrors.NewForbiddenError("you cannot suspend yourself")
	}
	target, err := s.d.Users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !permissions.CanManageUser(actor.Role, target.Role) {
		metricsDenied(actor, permissions.ManageUsers)
		return nil, apperrors.NewForbiddenError("you cannot manage this user")
	}
	if err := s.d.Users.SetSuspended(ctx, targetID, suspended); err != nil {
		return nil, storeError(err, "user")
	}
	topics := []string{livequery.ProfileTopic(targetID)}
	if suspended && target.IsOnline {
		if err := s.d.Users.SetPresence(ctx, targetID, false, time.Now()); err != nil {
			s.log.Warn("failed to clear presence of suspended user", zap.String("user_id", targetID), zap.Error(err))
		}
		topics = livequery.PresenceTopics(targetID, friendIDs(ctx, s.d, targetID))
		target.IsOnline = false
	}
	s.log.Info("suspension changed",
		zap.String("actor", actor.ID),
		zap.String("target", targetID),
		zap.Bool("suspended", suspended))
	target.IsSuspended = suspended
	s.d.Broker.Publish(ctx, topics...)
	return target, nil
}

// DeletePost removes any post. Unlike PostService.DeletePost it requires
// moderate_content even when the actor owns the post.
func (s *AdminService) DeletePost(ctx context.Context, actor Actor, postID string) error {
	if err := authorize(actor, permissions.ModerateContent); err != nil {
		return err
	}
	return s.posts.DeletePost(ctx, actor, postID)
}

func (s *AdminService) SendBulk(ctx context.Context, actor Actor, req models.BulkNotificationRequest) (int, error) {
	return s.notifications.SendBulk(ctx, actor, req)
}

func (s *AdminService) Analytics(ctx context.Context, actor Actor) (*Analytics, error) {
	if err := authorize(actor, permissions.ViewAnalytics); err != nil {
		return nil, err
	}
	total, online, err := s.d.Users.CountUsers(ctx)
	if err != nil {
		return nil, storeError(err, "users")
	}
	posts, err := s.d.Posts.CountPosts(ctx, time.Time{})
	if err != nil {
		return nil, storeError(err, "posts")
	}
	today, err := s.d.Posts.CountPosts(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, storeError(err, "posts")
	}
	return &Analytics{TotalUsers: total, OnlineUsers: online, TotalPosts: posts, PostsToday: today}, nil
}
