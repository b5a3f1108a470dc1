package services

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"go.uber.org/zap"
)

const (
	visibilityPublic  = "public"
	visibilityFriends = "friends"
)

// ToggleResult is the confirmed state of a like or save toggle. When the
// write failed, Err is set and Active holds the rolled-back value.
type ToggleResult struct {
	Active bool  `json:"active"`
	Err    error `json:"-"`
}

type toggleKey struct {
	postID string
	userID string
}

type PostService struct {
	d     Deps
	likes *Optimistic[toggleKey, bool]
	saves *Optimistic[toggleKey, bool]
	log   *zap.Logger
}

func NewPostService(d Deps) *PostService {
	return &PostService{
		d:     d,
		likes: NewOptimistic[toggleKey, bool](),
		saves: NewOptimistic[toggleKey, bool](),
		log:   d.Log.Named("posts"),
	}
}

// FeedQuery is the viewer's home feed: public posts plus friends-only posts
// by the viewer and their friends, newest first.
func (s *PostService) FeedQuery(viewer string, limit int) livequery.Query[models.PostView] {
	limit = clampLimit(limit, 20, 100)
	return livequery.Query[models.PostView]{
		Stream: "feed",
		Topics: []string{livequery.TopicFeed, livequery.FriendsTopic(viewer)},
		Fetch: func(ctx context.Context) ([]models.PostView, error) {
			friends, err := s.d.Friends.GetFriendIDs(ctx, viewer)
			if err != nil {
				return nil, storeError(err, "friends")
			}
			posts, err := s.d.Posts.GetFeed(ctx, repositories.FeedQuery{
				ViewerID:  viewer,
				FriendIDs: friends,
				Limit:     int64(limit),
			})
			if err != nil {
				return nil, storeError(err, "posts")
			}
			return s.decorate(ctx, viewer, posts)
		},
	}
}

func (s *PostService) SubscribeToFeed(viewer string, limit int, onData func(livequery.Snapshot[models.PostView])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.FeedQuery(viewer, limit), onData)
}

// UserPostsQuery lists uid's posts as seen by viewer.
func (s *PostService) UserPostsQuery(viewer, uid string, limit int) livequery.Query[models.PostView] {
	limit = clampLimit(limit, 20, 100)
	return livequery.Query[models.PostView]{
		Stream: "user_posts",
		Topics: []string{livequery.UserPostsTopic(uid), livequery.FriendsTopic(viewer)},
		Fetch: func(ctx context.Context) ([]models.PostView, error) {
			posts, err := s.d.Posts.GetPostsByUserID(ctx, uid, 0, int64(limit))
			if err != nil {
				return nil, storeError(err, "posts")
			}
			friends := viewer == uid
			if !friends {
				if friends, err = s.d.Friends.AreFriends(ctx, viewer, uid); err != nil {
					return nil, storeError(err, "friends")
				}
			}
			visible := posts[:0]
			for _, p := range posts {
				if p.Visibility != visibilityFriends || friends {
					visible = append(visible, p)
				}
			}
			return s.decorate(ctx, viewer, visible)
		},
	}
}

func (s *PostService) SubscribeToUserPosts(viewer, uid string, limit int, onData func(livequery.Snapshot[models.PostView])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.UserPostsQuery(viewer, uid, limit), onData)
}

func (s *PostService) decorate(ctx context.Context, viewer string, posts []models.Post) ([]models.PostView, error) {
	ids := make([]string, len(posts))
	authors := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID.Hex()
		authors[i] = posts[i].UserID
	}
	cards, err := compactUsers(ctx, s.d.Users, authors)
	if err != nil {
		return nil, storeError(err, "users")
	}
	liked, err := s.d.Likes.GetLikedPostIDs(ctx, viewer, ids)
	if err != nil {
		return nil, storeError(err, "likes")
	}
	saved, err := s.d.Saved.GetSavedPostIDs(ctx, viewer, ids)
	if err != nil {
		return nil, storeError(err, "saved posts")
	}

	out := make([]models.PostView, 0, len(posts))
	for i := range posts {
		author, ok := cards[posts[i].UserID]
		if !ok {
			author = models.UserCompact{ID: posts[i].UserID, Name: "Deleted user"}
		}
		out = append(out, models.PostView{
			Post:    posts[i],
			Author:  author,
			IsLiked: liked[ids[i]],
			IsSaved: saved[ids[i]],
		})
	}
	return out, nil
}

// GetPost returns a single post if viewer may see it.
func (s *PostService) GetPost(ctx context.Context, viewer Actor, id string) (*models.PostView, error) {
	post, err := s.visiblePost(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, viewer.ID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) visiblePost(ctx context.Context, viewer Actor, id string) (*models.Post, error) {
	post, err := s.d.Posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "post")
	}
	if post.Visibility != visibilityFriends || post.UserID == viewer.ID || viewer.Can(permissions.ModerateContent) {
		return post, nil
	}
	ok, err := s.d.Friends.AreFriends(ctx, viewer.ID, post.UserID)
	if err != nil {
		return nil, storeError(err, "friends")
	}
	if !ok {
		return nil, apperrors.NewNotFoundError("post")
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, actor Actor, req models.CreatePostRequest) (*models.Post, error) {
	if err := authorize(actor, permissions.CreatePosts); err != nil {
		return nil, err
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = visibilityPublic
	}
	post := &models.Post{
		UserID:     actor.ID,
		Content:    req.Content,
		ImageURLs:  req.ImageURLs,
		VideoURLs:  req.VideoURLs,
		Visibility: visibility,
	}
	if err := s.d.Posts.CreatePost(ctx, post); err != nil {
		return nil, storeError(err, "post")
	}
	s.d.Events.Emit(ctx, jobs.Event{Type: jobs.PostCreated, ActorID: actor.ID, TargetID: post.ID.Hex()})
	s.d.Broker.Publish(ctx, livequery.TopicFeed, livequery.UserPostsTopic(actor.ID))
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, actor Actor, id string, req models.UpdatePostRequest) (*models.Post, error) {
	post, err := s.d.Posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "post")
	}
	if post.UserID != actor.ID {
		return nil, apperrors.NewForbiddenError("you can only edit your own posts")
	}
	if req.Content != "" {
		post.Content = req.Content
	}
	if req.ImageURLs != nil {
		post.ImageURLs = req.ImageURLs
	}
	if req.VideoURLs != nil {
		post.VideoURLs = req.VideoURLs
	}
	post.UpdatedAt = time.Now()
	if err := s.d.Posts.UpdatePost(ctx, id, post); err != nil {
		return nil, storeError(err, "post")
	}
	s.d.Broker.Publish(ctx, livequery.TopicFeed, livequery.UserPostsTopic(actor.ID))
	return post, nil
}

// DeletePost removes a post with its comments and likes. Owners may delete
// their own posts; moderators any post.
func (s *PostService) DeletePost(ctx context.Context, actor Actor, id string) error {
	post, err := s.d.Posts.GetPostByID(ctx, id)
	if err != nil {
		return storeError(err, "post")
	}
	if post.UserID != actor.ID {
		if err := authorize(actor, permissions.ModerateContent); err != nil {
			return err
		}
	}
	if err := s.d.Posts.DeletePost(ctx, id); err != nil {
		return storeError(err, "post")
	}
	if _, err := s.d.Comments.DeleteByPostID(ctx, id); err != nil {
		s.log.Warn("failed to delete comments of removed post", zap.String("post_id", id), zap.Error(err))
	}
	if err := s.d.Likes.DeleteByPostID(ctx, id); err != nil {
		s.log.Warn("failed to delete likes of removed post", zap.String("post_id", id), zap.Error(err))
	}
	s.d.Events.Emit(ctx, jobs.Event{Type: jobs.PostDeleted, ActorID: actor.ID, SubjectID: post.UserID, TargetID: id})
	s.d.Broker.Publish(ctx, livequery.TopicFeed, livequery.UserPostsTopic(post.UserID))
	return nil
}

// ToggleLike flips the caller's like. The returned result always carries the
// confirmed state; on a failed write it also carries the error and the
// rolled-back state.
func (s *PostService) ToggleLike(ctx context.Context, actor Actor, postID string) (ToggleResult, error) {
	if err := authorize(actor, permissions.LikePosts); err != nil {
		return ToggleResult{}, err
	}
	post, err := s.visiblePost(ctx, actor, postID)
	if err != nil {
		return ToggleResult{}, err
	}
	key := toggleKey{postID: postID, userID: actor.ID}
	prior, err := s.d.Likes.HasUserLikedPost(ctx, postID, actor.ID)
	if err != nil {
		return ToggleResult{}, storeError(err, "like")
	}
	next := !prior
	if err := s.likes.Begin(key, prior, next); err != nil {
		return ToggleResult{Active: prior}, err
	}

	var changed bool
	if next {
		changed, err = s.d.Likes.AddLike(ctx, postID, actor.ID)
	} else {
		changed, err = s.d.Likes.RemoveLike(ctx, postID, actor.ID)
	}
	if err != nil {
		rolled, _ := s.likes.Fail(key)
		return ToggleResult{Active: rolled, Err: storeError(err, "like")}, nil
	}
	confirmed, _ := s.likes.Confirm(key)

	if changed {
		ev := jobs.LikeRemoved
		if next {
			ev = jobs.LikeAdded
		}
		s.d.Events.Emit(ctx, jobs.Event{Type: ev, ActorID: actor.ID, SubjectID: post.UserID, TargetID: postID})
	}
	s.d.Broker.Publish(ctx, livequery.TopicFeed, livequery.UserPostsTopic(post.UserID))
	return ToggleResult{Active: confirmed}, nil
}

func (s *PostService) ToggleSave(ctx context.Context, actor Actor, postID string) (ToggleResult, error) {
	if err := authorize(actor, permissions.ViewContent); err != nil {
		return ToggleResult{}, err
	}
	if _, err := s.visiblePost(ctx, actor, postID); err != nil {
		return ToggleResult{}, err
	}
	key := toggleKey{postID: postID, userID: actor.ID}
	prior, err := s.d.Saved.IsPostSaved(ctx, actor.ID, postID)
	if err != nil {
		return ToggleResult{}, storeError(err, "saved post")
	}
	next := !prior
	if err := s.saves.Begin(key, prior, next); err != nil {
		return ToggleResult{Active: prior}, err
	}

	if next {
		_, err = s.d.Saved.SavePost(ctx, actor.ID, postID)
	} else {
		_, err = s.d.Saved.UnsavePost(ctx, actor.ID, postID)
	}
	if err != nil {
		rolled, _ := s.saves.Fail(key)
		return ToggleResult{Active: rolled, Err: storeError(err, "saved post")}, nil
	}
	confirmed, _ := s.saves.Confirm(key)
	s.d.Broker.Publish(ctx, livequery.TopicFeed)
	return ToggleResult{Active: confirmed}, nil
}

// SavedPosts lists the caller's bookmarks that still exist.
func (s *PostService) SavedPosts(ctx context.Context, actor Actor) ([]models.PostView, error) {
	saved, err := s.d.Saved.GetSavedPostsByUser(ctx, actor.ID)
	if err != nil {
		return nil, storeError(err, "saved posts")
	}
	posts := make([]models.Post, 0, len(saved))
	for _, sp := range saved {
		p, err := s.d.Posts.GetPostByID(ctx, sp.PostID)
		if err != nil {
			continue
		}
		posts = append(posts, *p)
	}
	return s.decorate(ctx, actor.ID, posts)
}

func (s *PostService) AddComment(ctx context.Context, actor Actor, postID, content string) (*models.CommentView, error) {
	if err := authorize(actor, permissions.CommentOnPosts); err != nil {
		return nil, err
	}
	post, err := s.visiblePost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{PostID: postID, UserID: actor.ID, Content: content}
	if err := s.d.Comments.CreateComment(ctx, comment); err != nil {
		return nil, storeError(err, "comment")
	}
	s.d.Events.Emit(ctx, jobs.Event{
		Type:      jobs.CommentCreated,
		ActorID:   actor.ID,
		SubjectID: post.UserID,
		TargetID:  postID,
		Preview:   content,
	})

	cards, err := compactUsers(ctx, s.d.Users, []string{actor.ID})
	if err != nil {
		return nil, storeError(err, "users")
	}
	return &models.CommentView{Comment: *comment, Author: cards[actor.ID]}, nil
}

func (s *PostService) ListComments(ctx context.Context, viewer Actor, postID string, limit int) ([]models.CommentView, error) {
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	comments, err := s.d.Comments.GetCommentsByPostID(ctx, postID, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, storeError(err, "comments")
	}
	authors := make([]string, len(comments))
	for i := range comments {
		authors[i] = comments[i].UserID
	}
	cards, err := compactUsers(ctx, s.d.Users, authors)
	if err != nil {
		return nil, storeError(err, "users")
	}
	out := make([]models.CommentView, len(comments))
	for i := range comments {
		out[i] = models.CommentView{Comment: comments[i], Author: cards[comments[i].UserID]}
	}
	return out, nil
}

// DeleteComment is allowed for the comment's author, the post's owner and
// moderators.
func (s *PostService) DeleteComment(ctx context.Context, actor Actor, commentID uint) error {
	comment, err := s.d.Comments.GetCommentByID(ctx, commentID)
	if err != nil {
		return storeError(err, "comment")
	}
	post, err := s.d.Posts.GetPostByID(ctx, comment.PostID)
	if err != nil {
		return storeError(err, "post")
	}
	if comment.UserID != actor.ID && post.UserID != actor.ID {
		if err := authorize(actor, permissions.ModerateContent); err != nil {
			return err
		}
	}
	if err := s.d.Comments.DeleteComment(ctx, commentID); err != nil {
		return storeError(err, "comment")
	}
	s.d.Events.Emit(ctx, jobs.Event{Type: jobs.CommentDeleted, ActorID: actor.ID, SubjectID: post.UserID, TargetID: post.ID.Hex()})
	return nil
}
