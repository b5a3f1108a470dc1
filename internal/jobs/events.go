// Package jobs runs the reactive triggers behind user actions (counter
// maintenance, notification fan-out) and the scheduled cleanup.
package jobs

import "time"

type EventType string

const (
	PostCreated     EventType = "post.created"
	PostDeleted     EventType = "post.deleted"
	CommentCreated  EventType = "comment.created"
	CommentDeleted  EventType = "comment.deleted"
	LikeAdded       EventType = "like.added"
	LikeRemoved     EventType = "like.removed"
	FriendRequested EventType = "friend.requested"
	FriendAccepted  EventType = "friend.accepted"
	FriendRemoved   EventType = "friend.removed"
	MessageSent     EventType = "message.sent"
	StoryReacted    EventType = "story.reacted"
)

// Event describes a committed mutation. ActorID is who acted, SubjectID the
// other user the mutation concerns (post owner, request receiver, message
// recipient).
type Event struct {
	Type       EventType
	ActorID    string
	SubjectID  string
	TargetID   string
	Preview    string
	OccurredAt time.Time
}
