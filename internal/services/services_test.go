package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories/memory"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const eventually = time.Second

type emitted struct {
	mu     sync.Mutex
	events []jobs.Event
}

func (e *emitted) Emit(_ context.Context, ev jobs.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *emitted) ofType(t jobs.EventType) []jobs.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []jobs.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	users    *memory.UserStore
	posts    *memory.PostStore
	comments *memory.CommentStore
	likes    *memory.LikeStore
	saved    *memory.SavedStore
	friends  *memory.FriendStore
	notes    *memory.NotificationStore
	stories  *memory.StoryStore
	chats    *memory.ChatStore
	broker   *livequery.Broker
	events   *emitted
	deps     Deps
	svc      *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    memory.NewUserStore(),
		posts:    memory.NewPostStore(),
		comments: memory.NewCommentStore(),
		likes:    memory.NewLikeStore(),
		saved:    memory.NewSavedStore(),
		friends:  memory.NewFriendStore(),
		notes:    memory.NewNotificationStore(),
		stories:  memory.NewStoryStore(),
		chats:    memory.NewChatStore(),
		broker:   livequery.NewBroker(nil),
		events:   &emitted{},
	}
	f.deps = Deps{
		Users:         f.users,
		Posts:         f.posts,
		Comments:      f.comments,
		Likes:         f.likes,
		Saved:         f.saved,
		Friends:       f.friends,
		Notifications: f.notes,
		Stories:       f.stories,
		Chats:         f.chats,
		Broker:        f.broker,
		Events:        f.events,
		Log:           zap.NewNop(),
	}
	f.svc = New(f.deps)
	return f
}

func (f *fixture) addUser(id string, role permissions.Role) Actor {
	f.users.Put(models.User{
		ID:                   id,
		Name:                 id,
		Role:                 role,
		NotificationSettings: models.DefaultNotificationSettings(),
		PrivacySettings:      models.DefaultPrivacySettings(),
	})
	return Actor{ID: id, Role: role}
}

func (f *fixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	req := &models.FriendRequest{SenderID: a, ReceiverID: b}
	require.NoError(t, f.friends.SendFriendRequest(ctx, req))
	ok, err := f.friends.UpdateStatus(ctx, req.ID, models.FriendStatusAccepted)
	require.NoError(t, err)
	require.True(t, ok)
}

// snapshots collects deliveries of one subscription.
type snapshots[T any] struct {
	mu    sync.Mutex
	snaps []livequery.Snapshot[T]
}

func (s *snapshots[T]) onData(snap livequery.Snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *snapshots[T]) last() (livequery.Snapshot[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return livequery.Snapshot[T]{}, false
	}
	return s.snaps[len(s.snaps)-1], true
}

// waitFor blocks until the latest snapshot satisfies cond.
func (s *snapshots[T]) waitFor(t *testing.T, cond func(livequery.Snapshot[T]) bool) livequery.Snapshot[T] {
	t.Helper()
	var got livequery.Snapshot[T]
	require.Eventually(t, func() bool {
		snap, ok := s.last()
		if ok && cond(snap) {
			got = snap
			return true
		}
		return false
	}, eventually, 5*time.Millisecond)
	return got
}

// topicLog records every topic the fixture's broker publishes.
type topicLog struct {
	mu     sync.Mutex
	topics []string
}

func (l *topicLog) Forward(_ context.Context, topics []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.topics = append(l.topics, topics...)
	return nil
}

// take returns the topics published since the last call.
func (l *topicLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.topics
	l.topics = nil
	return out
}

func (f *fixture) recordTopics() *topicLog {
	l := &topicLog{}
	f.broker.SetRelay(l)
	return l
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}
