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

type PostStore struct {
	mu    sync.RWMutex
	posts map[string]models.Post
}

func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[string]models.Post)}
}

func (s *PostStore) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.ID = primitive.NewObjectID()
	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	if post.Visibility == "" {
		post.Visibility = "public"
	}
	s.posts[post.ID.Hex()] = *post
	return nil
}

func (s *PostStore) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, repositories.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (s *PostStore) GetPostsByUserID(_ context.Context, userID string, skip, limit int64) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool { return p.UserID == userID }, skip, limit), nil
}

func (s *PostStore) GetFeed(_ context.Context, q repositories.FeedQuery) ([]models.Post, error) {
	authors := map[string]bool{q.ViewerID: true}
	for _, id := range q.FriendIDs {
		authors[id] = true
	}
	return s.filter(func(p models.Post) bool {
		return p.Visibility != "friends" || authors[p.UserID]
	}, q.Skip, q.Limit), nil
}

func (s *PostStore) filter(keep func(models.Post) bool, skip, limit int64) []models.Post {
	s.mu.RLock()
	var out []models.Post
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if skip >= int64(len(out)) {
		return []models.Post{}
	}
	out = out[skip:]
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (s *PostStore) UpdatePost(_ context.Context, id string, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	existing.Content = post.Content
	existing.ImageURLs = post.ImageURLs
	existing.VideoURLs = post.VideoURLs
	existing.UpdatedAt = time.Now()
	s.posts[id] = existing
	return nil
}

func (s *PostStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *PostStore) IncrementLikesCount(_ context.Context, postID string, delta int) error {
	return s.inc(postID, func(p *models.Post) { p.LikesCount = clampAdd(p.LikesCount, delta) })
}

func (s *PostStore) IncrementCommentsCount(_ context.Context, postID string, delta int) error {
	return s.inc(postID, func(p *models.Post) { p.CommentsCount = clampAdd(p.CommentsCount, delta) })
}

func (s *PostStore) inc(id string, fn func(*models.Post)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	fn(&p)
	s.posts[id] = p
	return nil
}

func (s *PostStore) CountPosts(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.posts {
		if since.IsZero() || !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
