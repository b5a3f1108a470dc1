package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
)

type pairKey struct{ a, b string }

type CommentStore struct {
	mu       sync.RWMutex
	nextID   uint
	comments map[uint]models.Comment
}

func NewCommentStore() *CommentStore {
	return &CommentStore{comments: make(map[uint]models.Comment)}
}

func (s *CommentStore) CreateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.comments[c.ID] = *c
	return nil
}

func (s *CommentStore) GetCommentByID(_ context.Context, id uint) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (s *CommentStore) GetCommentsByPostID(_ context.Context, postID string, limit int) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *CommentStore) DeleteComment(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *CommentStore) DeleteByPostID(_ context.Context, postID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
			n++
		}
	}
	return n, nil
}

// LikeStore and SavedStore share the same (user, post) set shape.
type flagSet struct {
	mu   sync.RWMutex
	rows map[pairKey]time.Time
}

func newFlagSet() flagSet { return flagSet{rows: make(map[pairKey]time.Time)} }

func (f *flagSet) add(post, user string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey{post, user}
	if _, ok := f.rows[k]; ok {
		return false
	}
	f.rows[k] = time.Now()
	return true
}

func (f *flagSet) remove(post, user string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pairKey{post, user}
	if _, ok := f.rows[k]; !ok {
		return false
	}
	delete(f.rows, k)
	return true
}

func (f *flagSet) has(post, user string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.rows[pairKey{post, user}]
	return ok
}

func (f *flagSet) subset(user string, posts []string) map[string]bool {
	out := make(map[string]bool)
	for _, p := range posts {
		if f.has(p, user) {
			out[p] = true
		}
	}
	return out
}

type LikeStore struct{ set flagSet }

func NewLikeStore() *LikeStore { return &LikeStore{set: newFlagSet()} }

func (s *LikeStore) AddLike(_ context.Context, postID, userID string) (bool, error) {
	return s.set.add(postID, userID), nil
}

func (s *LikeStore) RemoveLike(_ context.Context, postID, userID string) (bool, error) {
	return s.set.remove(postID, userID), nil
}

func (s *LikeStore) HasUserLikedPost(_ context.Context, postID, userID string) (bool, error) {
	return s.set.has(postID, userID), nil
}

func (s *LikeStore) GetLikedPostIDs(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return s.set.subset(userID, postIDs), nil
}

func (s *LikeStore) DeleteByPostID(_ context.Context, postID string) error {
	s.set.mu.Lock()
	defer s.set.mu.Unlock()
	for k := range s.set.rows {
		if k.a == postID {
			delete(s.set.rows, k)
		}
	}
	return nil
}

type SavedStore struct{ set flagSet }

func NewSavedStore() *SavedStore { return &SavedStore{set: newFlagSet()} }

func (s *SavedStore) SavePost(_ context.Context, userID, postID string) (bool, error) {
	return s.set.add(postID, userID), nil
}

func (s *SavedStore) UnsavePost(_ context.Context, userID, postID string) (bool, error) {
	return s.set.remove(postID, userID), nil
}

func (s *SavedStore) IsPostSaved(_ context.Context, userID, postID string) (bool, error) {
	return s.set.has(postID, userID), nil
}

func (s *SavedStore) GetSavedPostsByUser(_ context.Context, userID string) ([]models.SavedPost, error) {
	s.set.mu.RLock()
	defer s.set.mu.RUnlock()
	out := []models.SavedPost{}
	for k, at := range s.set.rows {
		if k.b == userID {
			out = append(out, models.SavedPost{UserID: userID, PostID: k.a, CreatedAt: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *SavedStore) GetSavedPostIDs(_ context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return s.set.subset(userID, postIDs), nil
}

type FriendStore struct {
	mu     sync.RWMutex
	nextID uint
	reqs   map[uint]models.FriendRequest
}

func NewFriendStore() *FriendStore {
	return &FriendStore{reqs: make(map[uint]models.FriendRequest)}
}

func (s *FriendStore) findPair(a, b string) (models.FriendRequest, bool) {
	for _, r := range s.reqs {
		if (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a) {
			return r, true
		}
	}
	return models.FriendRequest{}, false
}

func (s *FriendStore) SendFriendRequest(_ context.Context, req *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.findPair(req.SenderID, req.ReceiverID); ok {
		if existing.Status != models.FriendStatusRejected {
			return repositories.ErrAlreadyExists
		}
		existing.SenderID, existing.ReceiverID = req.SenderID, req.ReceiverID
		existing.Status = models.FriendStatusPending
		existing.UpdatedAt = now
		s.reqs[existing.ID] = existing
		*req = existing
		return nil
	}
	s.nextID++
	req.ID = s.nextID
	req.Status = models.FriendStatusPending
	req.CreatedAt, req.UpdatedAt = now, now
	s.reqs[req.ID] = *req
	return nil
}

func (s *FriendStore) GetFriendRequestByID(_ context.Context, id uint) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reqs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &r, nil
}

func (s *FriendStore) GetPendingForUser(_ context.Context, userID string) ([]models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.FriendRequest{}
	for _, r := range s.reqs {
		if r.ReceiverID == userID && r.Status == models.FriendStatusPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *FriendStore) GetFriendIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for _, r := range s.reqs {
		if r.Status == models.FriendStatusAccepted && (r.SenderID == userID || r.ReceiverID == userID) {
			ids = append(ids, r.Other(userID))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FriendStore) AreFriends(_ context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.findPair(a, b)
	return ok && r.Status == models.FriendStatusAccepted, nil
}

func (s *FriendStore) UpdateStatus(_ context.Context, id uint, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reqs[id]
	if !ok || r.Status != models.FriendStatusPending {
		return false, nil
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	s.reqs[id] = r
	return true, nil
}

func (s *FriendStore) DeleteFriendship(_ context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.findPair(a, b)
	if !ok || r.Status != models.FriendStatusAccepted {
		return false, nil
	}
	delete(s.reqs, r.ID)
	return true, nil
}
