package models

import (
	"time"

	"github.com/anonto42/linkup/backend/internal/permissions"
)

// User is the application profile derived from a Firebase identity. ID is
// the identity uid.
type User struct {
	ID                   string               `json:"id" gorm:"primaryKey;size:128"`
	Email                string               `json:"email" gorm:"index"`
	Name                 string               `json:"name"`
	Role                 permissions.Role     `json:"role" gorm:"size:20;default:'user';index"`
	Avatar               string               `json:"avatar,omitempty"`
	Phone                string               `json:"phone,omitempty"`
	Bio                  string               `json:"bio,omitempty" gorm:"size:300"`
	CoverPhoto           string               `json:"cover_photo,omitempty"`
	PostsCount           int                  `json:"posts_count" gorm:"default:0"`
	FriendsCount         int                  `json:"friends_count" gorm:"default:0"`
	NotificationSettings NotificationSettings `json:"notification_settings" gorm:"type:jsonb;serializer:json"`
	PrivacySettings      PrivacySettings      `json:"privacy_settings" gorm:"type:jsonb;serializer:json"`
	IsOnline             bool                 `json:"is_online" gorm:"default:false;index"`
	IsSuspended          bool                 `json:"is_suspended" gorm:"default:false"`
	LastActive           time.Time            `json:"last_active"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

type NotificationSettings struct {
	Email          bool `json:"email"`
	Push           bool `json:"push"`
	FriendRequests bool `json:"friend_requests"`
	Comments       bool `json:"comments"`
	Likes          bool `json:"likes"`
	Messages       bool `json:"messages"`
}

type PrivacySettings struct {
	ProfileVisibility string `json:"profile_visibility"` // public, friends, private
	ShowOnlineStatus  bool   `json:"show_online_status"`
	AllowMessagesFrom string `json:"allow_messages_from"` // everyone, friends
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Email:          true,
		Push:           true,
		FriendRequests: true,
		Comments:       true,
		Likes:          true,
		Messages:       true,
	}
}

func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		ProfileVisibility: "public",
		ShowOnlineStatus:  true,
		AllowMessagesFrom: "friends",
	}
}

// UserCompact is the author/actor card embedded in other payloads.
type UserCompact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	IsOnline bool   `json:"is_online"`
}

func (u *User) ToCompact() UserCompact {
	online := u.IsOnline && u.PrivacySettings.ShowOnlineStatus
	return UserCompact{ID: u.ID, Name: u.Name, Avatar: u.Avatar, IsOnline: online}
}

type UpdateUserRequest struct {
	Name                 *string               `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Phone                *string               `json:"phone,omitempty" validate:"omitempty,max=20"`
	Bio                  *string               `json:"bio,omitempty" validate:"omitempty,max=300"`
	NotificationSettings *NotificationSettings `json:"notification_settings,omitempty"`
	PrivacySettings      *PrivacySettings      `json:"privacy_settings,omitempty"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type UpdateSuspensionRequest struct {
	Suspended bool `json:"suspended"`
}
