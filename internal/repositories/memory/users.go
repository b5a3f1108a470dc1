// Package memory holds in-process implementations of the repository
// interfaces. They back unit tests and local runs without databases.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
)

var (
	_ repositories.UserRepository         = (*UserStore)(nil)
	_ repositories.PostRepository         = (*PostStore)(nil)
	_ repositories.CommentRepository      = (*CommentStore)(nil)
	_ repositories.LikeRepository         = (*LikeStore)(nil)
	_ repositories.SavedPostRepository    = (*SavedStore)(nil)
	_ repositories.FriendshipRepository   = (*FriendStore)(nil)
	_ repositories.NotificationRepository = (*NotificationStore)(nil)
	_ repositories.StoryRepository        = (*StoryStore)(nil)
	_ repositories.ChatRepository         = (*ChatStore)(nil)
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]models.User)}
}

// Put replaces a profile wholesale; used to seed tests.
func (s *UserStore) Put(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Len returns the number of stored profiles.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *UserStore) CreateIfAbsent(_ context.Context, user *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return true, nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *UserStore) ListUsers(_ context.Context, q repositories.UserQuery) ([]models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []models.User
	for _, u := range s.users {
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if q.Search != "" && !matches(u, q.Search) {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	return page(all, q.Page, q.Limit), total, nil
}

func (s *UserStore) SearchUsers(_ context.Context, query string, limit int) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, u := range s.users {
		if !u.IsSuspended && matches(u, query) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *UserStore) ListIDsByRole(_ context.Context, role permissions.Role) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for id, u := range s.users {
		if u.IsSuspended || (role != "" && u.Role != role) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *UserStore) UpdateProfile(_ context.Context, id string, upd repositories.ProfileUpdate) error {
	return s.mutate(id, func(u *models.User) { upd.Apply(u) })
}

func (s *UserStore) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	return s.mutate(id, func(u *models.User) {
		u.IsOnline = online
		u.LastActive = at
	})
}

func (s *UserStore) SetRole(_ context.Context, id string, role permissions.Role) error {
	return s.mutate(id, func(u *models.User) { u.Role = role })
}

func (s *UserStore) SetSuspended(_ context.Context, id string, suspended bool) error {
	return s.mutate(id, func(u *models.User) { u.IsSuspended = suspended })
}

func (s *UserStore) IncrementPostsCount(_ context.Context, id string, delta int) error {
	return s.mutate(id, func(u *models.User) { u.PostsCount = clampAdd(u.PostsCount, delta) })
}

func (s *UserStore) IncrementFriendsCount(_ context.Context, id string, delta int) error {
	return s.mutate(id, func(u *models.User) { u.FriendsCount = clampAdd(u.FriendsCount, delta) })
}

func (s *UserStore) CountUsers(_ context.Context) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var online int64
	for _, u := range s.users {
		if u.IsOnline {
			online++
		}
	}
	return int64(len(s.users)), online, nil
}

func (s *UserStore) mutate(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

func matches(u models.User, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q)
}

func clampAdd(v, delta int) int {
	if v+delta < 0 {
		return 0
	}
	return v + delta
}

func page[T any](items []T, p, limit int) []T {
	if limit <= 0 {
		return items
	}
	if p < 1 {
		p = 1
	}
	start := (p - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
