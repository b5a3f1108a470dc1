package models

import "time"

// Like represents a like on a post. The (post, user) pair is unique, so a
// repeated like is a no-op rather than a second row.
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"index;uniqueIndex:idx_like_post_user"`
	UserID    string    `json:"user_id" gorm:"size:128;uniqueIndex:idx_like_post_user"`
	CreatedAt time.Time `json:"created_at"`
}
