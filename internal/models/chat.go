package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is a direct message between two friends (MongoDB).
type ChatMessage struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	ChatID      string             `json:"chat_id" bson:"chat_id"`
	SenderID    string             `json:"sender_id" bson:"sender_id"`
	RecipientID string             `json:"recipient_id" bson:"recipient_id"`
	Type        string             `json:"type" bson:"type"` // text, image, video, audio, document, voice
	Content     string             `json:"content,omitempty" bson:"content,omitempty"`
	MediaURL    string             `json:"media_url,omitempty" bson:"media_url,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// ChatID is the stable conversation id for a pair of users, independent of
// who sends first.
func ChatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=text image video audio document voice"`
	Content     string `json:"content,omitempty" validate:"max=4000"`
	MediaURL    string `json:"media_url,omitempty" validate:"omitempty,url"`
}
