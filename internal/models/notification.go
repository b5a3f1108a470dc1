package models

import "time"

const (
	NotificationComment        = "comment"
	NotificationLike           = "like"
	NotificationFriendRequest  = "friend_request"
	NotificationFriendAccepted = "friend_accepted"
	NotificationMessage        = "message"
	NotificationStoryReaction  = "story_reaction"
	NotificationSystem         = "system"
)

// Notification is created by a side effect of another entity's mutation
// and only ever mutated by its recipient marking it read.
type Notification struct {
	ID          uint              `json:"id" gorm:"primaryKey"`
	RecipientID string            `json:"user_id" gorm:"size:128;index"`
	ActorID     string            `json:"actor_id,omitempty" gorm:"size:128"`
	Type        string            `json:"type" gorm:"size:30;index"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	TargetID    string            `json:"target_id,omitempty"`
	TargetType  string            `json:"target_type,omitempty" gorm:"size:20"`
	Data        map[string]string `json:"data,omitempty" gorm:"type:jsonb;serializer:json"`
	IsRead      bool              `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
}

type NotificationView struct {
	Notification
	Actor *UserCompact `json:"actor,omitempty"`
}

type BulkNotificationRequest struct {
	Title   string            `json:"title" validate:"required,min=1,max=120"`
	Message string            `json:"message" validate:"required,min=1,max=1000"`
	Role    string            `json:"role,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}
