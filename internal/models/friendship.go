package models

import "time"

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusRejected = "rejected"
)

// FriendRequest represents a friend request between two users. An accepted
// request is the friendship itself.
type FriendRequest struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SenderID   string    `json:"sender_id" gorm:"size:128;index;uniqueIndex:idx_friend_pair"`
	ReceiverID string    `json:"receiver_id" gorm:"size:128;index;uniqueIndex:idx_friend_pair"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Other returns the participant that is not uid.
func (r *FriendRequest) Other(uid string) string {
	if r.SenderID == uid {
		return r.ReceiverID
	}
	return r.SenderID
}

type FriendRequestView struct {
	FriendRequest
	Sender UserCompact `json:"sender"`
}

type CreateFriendRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

type UpdateFriendRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}
