package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB
type Post struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	Content       string             `json:"content" bson:"content"`
	ImageURLs     []string           `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	VideoURLs     []string           `json:"video_urls,omitempty" bson:"video_urls,omitempty"`
	Visibility    string             `json:"visibility" bson:"visibility"` // public, friends
	LikesCount    int                `json:"likes_count" bson:"likes_count"`
	CommentsCount int                `json:"comments_count" bson:"comments_count"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// PostView is a post decorated for a specific viewer.
type PostView struct {
	Post
	Author  UserCompact `json:"author"`
	IsLiked bool        `json:"is_liked"`
	IsSaved bool        `json:"is_saved"`
}

type CreatePostRequest struct {
	Content    string   `json:"content" validate:"required,min=1,max=2000"`
	ImageURLs  []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	VideoURLs  []string `json:"video_urls,omitempty" validate:"omitempty,max=4,dive,url"`
	Visibility string   `json:"visibility,omitempty" validate:"omitempty,oneof=public friends"`
}

type UpdatePostRequest struct {
	Content   string   `json:"content,omitempty" validate:"omitempty,min=1,max=2000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	VideoURLs []string `json:"video_urls,omitempty" validate:"omitempty,max=4,dive,url"`
}
