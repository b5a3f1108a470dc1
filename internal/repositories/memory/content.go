package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationStore struct {
	mu     sync.RWMutex
	nextID uint
	items  map[uint]models.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{items: make(map[uint]models.Notification)}
}

func (s *NotificationStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.items[n.ID] = *n
	return nil
}

func (s *NotificationStore) CreateMany(ctx context.Context, ns []models.Notification) error {
	for i := range ns {
		if err := s.CreateNotification(ctx, &ns[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *NotificationStore) forRecipient(uid string) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range s.items {
		if n.RecipientID == uid {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *NotificationStore) GetByRecipientID(_ context.Context, uid string, p, limit int) ([]models.Notification, int64, error) {
	all := s.forRecipient(uid)
	return page(all, p, limit), int64(len(all)), nil
}

func (s *NotificationStore) GetGrouped(_ context.Context, uid string, now time.Time) (*repositories.GroupedNotifications, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	var recent, older []models.Notification
	for _, n := range s.forRecipient(uid) {
		if n.CreatedAt.Before(weekStart) {
			older = append(older, n)
		} else {
			recent = append(recent, n)
		}
	}
	g := repositories.GroupNotifications(recent, todayStart, yesterdayStart)
	g.Older = append(g.Older, older...)
	return g, nil
}

func (s *NotificationStore) GetUnreadCount(_ context.Context, uid string) (int64, error) {
	var n int64
	for _, item := range s.forRecipient(uid) {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *NotificationStore) MarkAsRead(_ context.Context, uid string, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.RecipientID != uid {
		return false, nil
	}
	n.IsRead = true
	s.items[id] = n
	return true, nil
}

func (s *NotificationStore) MarkAllAsRead(_ context.Context, uid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, n := range s.items {
		if n.RecipientID == uid && !n.IsRead {
			n.IsRead = true
			s.items[id] = n
			changed++
		}
	}
	return changed, nil
}

func (s *NotificationStore) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, n := range s.items {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(s.items, id)
			deleted++
		}
	}
	return deleted, nil
}

type StoryStore struct {
	mu        sync.RWMutex
	stories   map[string]models.Story
	seen      map[pairKey]bool
	reactions []models.StoryReaction
}

func NewStoryStore() *StoryStore {
	return &StoryStore{stories: make(map[string]models.Story), seen: make(map[pairKey]bool)}
}

func (s *StoryStore) CreateStory(_ context.Context, story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	story.ID = primitive.NewObjectID()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}
	if story.ExpiresAt.IsZero() {
		story.ExpiresAt = story.CreatedAt.Add(models.StoryLifetime)
	}
	s.stories[story.ID.Hex()] = *story
	return nil
}

func (s *StoryStore) GetStoryByID(_ context.Context, id string) (*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stories[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &st, nil
}

func (s *StoryStore) GetActiveStories(_ context.Context, now time.Time) ([]models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Story{}
	for _, st := range s.stories {
		if st.ExpiresAt.After(now) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *StoryStore) DeleteExpiredStories(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, st := range s.stories {
		if !st.ExpiresAt.After(now) {
			delete(s.stories, id)
			n++
		}
	}
	return n, nil
}

func (s *StoryStore) MarkSeen(_ context.Context, storyID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[pairKey{storyID, userID}] = true
	return nil
}

func (s *StoryStore) GetSeenStoryIDs(_ context.Context, userID string, storyIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, id := range storyIDs {
		if s.seen[pairKey{id, userID}] {
			out[id] = true
		}
	}
	return out, nil
}

func (s *StoryStore) AddReaction(_ context.Context, r *models.StoryReaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.CreatedAt = time.Now()
	s.reactions = append(s.reactions, *r)
	return nil
}

type ChatStore struct {
	mu   sync.RWMutex
	msgs map[string][]models.ChatMessage
}

func NewChatStore() *ChatStore {
	return &ChatStore{msgs: make(map[string][]models.ChatMessage)}
}

func (s *ChatStore) CreateMessage(_ context.Context, m *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now()
	s.msgs[m.ChatID] = append(s.msgs[m.ChatID], *m)
	return nil
}

func (s *ChatStore) ListMessages(_ context.Context, chatID string, limit int64) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.msgs[chatID]
	if limit > 0 && int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return append([]models.ChatMessage{}, all...), nil
}
