package services

import (
	"context"
	"strings"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

const (
	profilePublic  = "public"
	profileFriends = "friends"
	profilePrivate = "private"
)

type ProfileService struct {
	d Deps
}

func NewProfileService(d Deps) *ProfileService {
	return &ProfileService{d: d}
}

// ProfileQuery streams a single-element snapshot of uid's own profile.
func (s *ProfileService) ProfileQuery(uid string) livequery.Query[models.User] {
	return livequery.Query[models.User]{
		Stream: "profile",
		Topics: []string{livequery.ProfileTopic(uid)},
		Fetch: func(ctx context.Context) ([]models.User, error) {
			u, err := s.Me(ctx, uid)
			if err != nil {
				return nil, err
			}
			return []models.User{*u}, nil
		},
	}
}

func (s *ProfileService) Me(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.d.Users.GetUserByID(ctx, uid)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return u, nil
}

// Get returns id's profile as seen by viewer. Contact details and settings
// are only shown to the owner and to staff who can view users.
func (s *ProfileService) Get(ctx context.Context, viewer Actor, id string) (*models.User, error) {
	u, err := s.d.Users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if u.ID == viewer.ID || viewer.Can(permissions.ViewUsers) {
		return u, nil
	}

	switch u.PrivacySettings.ProfileVisibility {
	case profilePrivate:
		return nil, apperrors.NewForbiddenError("this profile is private")
	case profileFriends:
		ok, err := s.d.Friends.AreFriends(ctx, viewer.ID, u.ID)
		if err != nil {
			return nil, storeError(err, "friends")
		}
		if !ok {
			return nil, apperrors.NewForbiddenError("this profile is only visible to friends")
		}
	}
	return redact(u), nil
}

func redact(u *models.User) *models.User {
	out := *u
	out.Email = ""
	out.Phone = ""
	out.NotificationSettings = models.NotificationSettings{}
	out.IsOnline = u.IsOnline && u.PrivacySettings.ShowOnlineStatus
	out.PrivacySettings = models.PrivacySettings{}
	return &out
}

func (s *ProfileService) Update(ctx context.Context, actor Actor, req models.UpdateUserRequest) (*models.User, error) {
	if req.PrivacySettings != nil {
		switch req.PrivacySettings.ProfileVisibility {
		case profilePublic, profileFriends, profilePrivate:
		default:
			return nil, apperrors.NewInvalidInputError("profile_visibility must be public, friends or private")
		}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	upd := repositories.ProfileUpdate{
		Name:                 req.Name,
		Phone:                req.Phone,
		Bio:                  req.Bio,
		NotificationSettings: req.NotificationSettings,
		PrivacySettings:      req.PrivacySettings,
	}
	return s.apply(ctx, actor.ID, upd)
}

func (s *ProfileService) SetAvatar(ctx context.Context, uid, url string) (*models.User, error) {
	return s.apply(ctx, uid, repositories.ProfileUpdate{Avatar: &url})
}

func (s *ProfileService) SetCover(ctx context.Context, uid, url string) (*models.User, error) {
	return s.apply(ctx, uid, repositories.ProfileUpdate{CoverPhoto: &url})
}

func (s *ProfileService) apply(ctx context.Context, uid string, upd repositories.ProfileUpdate) (*models.User, error) {
	if err := s.d.Users.UpdateProfile(ctx, uid, upd); err != nil {
		return nil, storeError(err, "user")
	}
	// name, avatar and online visibility appear on friend cards
	s.d.Broker.Publish(ctx, livequery.PresenceTopics(uid, friendIDs(ctx, s.d, uid))...)
	return s.Me(ctx, uid)
}

func (s *ProfileService) Search(ctx context.Context, query string, limit int) ([]models.UserCompact, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperrors.NewInvalidInputError("search query must be at least 2 characters")
	}
	users, err := s.d.Users.SearchUsers(ctx, query, clampLimit(limit, 20, 50))
	if err != nil {
		return nil, storeError(err, "users")
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		if users[i].IsSuspended {
			continue
		}
		out = append(out, users[i].ToCompact())
	}
	return out, nil
}
