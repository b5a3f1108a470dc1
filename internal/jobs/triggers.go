package jobs

import (
	"context"
	"fmt"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"go.uber.org/zap"
)

// Triggers keeps denormalized counters in step with the records they count
// and fans out notifications. Counters only ever move through the stores'
// atomic increment primitives.
type Triggers struct {
	users         repositories.UserRepository
	posts         repositories.PostRepository
	notifications repositories.NotificationRepository
	publisher     livequery.Publisher
	log           *zap.Logger
}

func NewTriggers(
	users repositories.UserRepository,
	posts repositories.PostRepository,
	notifications repositories.NotificationRepository,
	publisher livequery.Publisher,
	log *zap.Logger,
) *Triggers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Triggers{
		users:         users,
		posts:         posts,
		notifications: notifications,
		publisher:     publisher,
		log:           log.Named("triggers"),
	}
}

// Register installs every trigger on d.
func (t *Triggers) Register(d *Dispatcher) {
	d.On(PostCreated, t.postCount(1))
	d.On(PostDeleted, t.postCount(-1))
	d.On(CommentCreated, t.commentCreated)
	d.On(CommentDeleted, t.commentCount(-1))
	d.On(LikeAdded, t.likeAdded)
	d.On(LikeRemoved, t.likeCount(-1))
	d.On(FriendRequested, t.friendRequested)
	d.On(FriendAccepted, t.friendAccepted)
	d.On(FriendRemoved, t.friendCount(-1))
	d.On(MessageSent, t.messageSent)
	d.On(StoryReacted, t.storyReacted)
}

func (t *Triggers) postCount(delta int) Handler {
	return func(ctx context.Context, ev Event) error {
		owner := ev.ActorID
		if ev.SubjectID != "" {
			owner = ev.SubjectID
		}
		if err := t.users.IncrementPostsCount(ctx, owner, delta); err != nil {
			return fmt.Errorf("posts_count for %s: %w", owner, err)
		}
		t.publisher.Publish(ctx, livequery.ProfileTopic(owner))
		return nil
	}
}

func (t *Triggers) commentCount(delta int) Handler {
	return func(ctx context.Context, ev Event) error {
		if err := t.posts.IncrementCommentsCount(ctx, ev.TargetID, delta); err != nil {
			return fmt.Errorf("comments_count for post %s: %w", ev.TargetID, err)
		}
		t.publisher.Publish(ctx, livequery.TopicFeed, livequery.UserPostsTopic(ev.SubjectID))
		return nil
	}
}

func (t *Triggers) likeCount(delta int) Handler {
	return func(ctx context.Context, ev Event) error {
		if err := t.posts.IncrementLikesCount(ctx, ev.TargetID, delta); err != nil {
			return fmt.Errorf("likes_count for post %s: %w", ev.TargetID, err)
		}
		t.publisher.Publish(ctx, livequery.TopicFeed, livequery.UserPostsTopic(ev.SubjectID))
		return nil
	}
}

func (t *Triggers) friendCount(delta int) Handler {
	return func(ctx context.Context, ev Event) error {
		for _, uid := range []string{ev.ActorID, ev.SubjectID} {
			if err := t.users.IncrementFriendsCount(ctx, uid, delta); err != nil {
				return fmt.Errorf("friends_count for %s: %w", uid, err)
			}
		}
		t.publisher.Publish(ctx, livequery.ProfileTopic(ev.ActorID), livequery.ProfileTopic(ev.SubjectID))
		return nil
	}
}

func (t *Triggers) commentCreated(ctx context.Context, ev Event) error {
	if err := t.commentCount(1)(ctx, ev); err != nil {
		return err
	}
	return t.notify(ctx, ev, models.NotificationComment, "New comment", "commented on your post", "post")
}

func (t *Triggers) likeAdded(ctx context.Context, ev Event) error {
	if err := t.likeCount(1)(ctx, ev); err != nil {
		return err
	}
	return t.notify(ctx, ev, models.NotificationLike, "New like", "liked your post", "post")
}

func (t *Triggers) friendRequested(ctx context.Context, ev Event) error {
	return t.notify(ctx, ev, models.NotificationFriendRequest, "Friend request", "sent you a friend request", "friend_request")
}

func (t *Triggers) friendAccepted(ctx context.Context, ev Event) error {
	if err := t.friendCount(1)(ctx, ev); err != nil {
		return err
	}
	return t.notify(ctx, ev, models.NotificationFriendAccepted, "Friend request accepted", "accepted your friend request", "user")
}

func (t *Triggers) messageSent(ctx context.Context, ev Event) error {
	return t.notify(ctx, ev, models.NotificationMessage, "New message", "sent you a message", "chat")
}

func (t *Triggers) storyReacted(ctx context.Context, ev Event) error {
	return t.notify(ctx, ev, models.NotificationStoryReaction, "Story reaction", "reacted to your story", "story")
}

// notify writes a notification for ev.SubjectID unless the actor is acting
// on their own content or the recipient opted out of this kind.
func (t *Triggers) notify(ctx context.Context, ev Event, kind, title, verb, targetType string) error {
	if ev.SubjectID == "" || ev.SubjectID == ev.ActorID {
		return nil
	}
	recipient, err := t.users.GetUserByID(ctx, ev.SubjectID)
	if err != nil {
		return fmt.Errorf("load recipient %s: %w", ev.SubjectID, err)
	}
	if !wants(recipient.NotificationSettings, kind) {
		return nil
	}

	actorName := "Someone"
	if actor, err := t.users.GetUserByID(ctx, ev.ActorID); err == nil && actor.Name != "" {
		actorName = actor.Name
	}

	n := &models.Notification{
		RecipientID: ev.SubjectID,
		ActorID:     ev.ActorID,
		Type:        kind,
		Title:       title,
		Message:     actorName + " " + verb,
		TargetID:    ev.TargetID,
		TargetType:  targetType,
	}
	if ev.Preview != "" {
		n.Data = map[string]string{"preview": truncate(ev.Preview, 120)}
	}
	if err := t.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	t.publisher.Publish(ctx, livequery.NotificationsTopic(ev.SubjectID))
	return nil
}

func wants(s models.NotificationSettings, kind string) bool {
	switch kind {
	case models.NotificationComment:
		return s.Comments
	case models.NotificationLike:
		return s.Likes
	case models.NotificationFriendRequest, models.NotificationFriendAccepted:
		return s.FriendRequests
	case models.NotificationMessage:
		return s.Messages
	default:
		return true
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
