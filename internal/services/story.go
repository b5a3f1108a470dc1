package services

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/jobs"
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/google/uuid"
)

const defaultStoryDuration = 5

type StoryService struct {
	d   Deps
	now func() time.Time
}

func NewStoryService(d Deps) *StoryService {
	return &StoryService{d: d, now: time.Now}
}

// StoriesQuery lists the unexpired stories of the viewer and the viewer's
// friends, with the viewer's own stories first.
func (s *StoryService) StoriesQuery(viewer string) livequery.Query[models.StoryView] {
	return livequery.Query[models.StoryView]{
		Stream: "stories",
		Topics: []string{livequery.StoriesTopic(viewer), livequery.FriendsTopic(viewer), livequery.TopicStories},
		Fetch:  func(ctx context.Context) ([]models.StoryView, error) { return s.active(ctx, viewer) },
	}
}

func (s *StoryService) SubscribeToStories(viewer string, onData func(livequery.Snapshot[models.StoryView])) livequery.Unsubscribe {
	return livequery.Subscribe(s.d.Broker, s.StoriesQuery(viewer), onData)
}

func (s *StoryService) List(ctx context.Context, viewer string) ([]models.StoryView, error) {
	return s.active(ctx, viewer)
}

func (s *StoryService) active(ctx context.Context, viewer string) ([]models.StoryView, error) {
	friends, err := s.d.Friends.GetFriendIDs(ctx, viewer)
	if err != nil {
		return nil, storeError(err, "friends")
	}
	visible := make(map[string]bool, len(friends)+1)
	visible[viewer] = true
	for _, id := range friends {
		visible[id] = true
	}

	stories, err := s.d.Stories.GetActiveStories(ctx, s.now())
	if err != nil {
		return nil, storeError(err, "stories")
	}
	var own, others []models.Story
	for _, st := range stories {
		switch {
		case st.UserID == viewer:
			own = append(own, st)
		case visible[st.UserID]:
			others = append(others, st)
		}
	}
	ordered := append(own, others...)

	ids := make([]string, len(ordered))
	authors := make([]string, len(ordered))
	for i := range ordered {
		ids[i] = ordered[i].ID.Hex()
		authors[i] = ordered[i].UserID
	}
	seen, err := s.d.Stories.GetSeenStoryIDs(ctx, viewer, ids)
	if err != nil {
		return nil, storeError(err, "stories")
	}
	cards, err := compactUsers(ctx, s.d.Users, authors)
	if err != nil {
		return nil, storeError(err, "users")
	}

	out := make([]models.StoryView, len(ordered))
	for i, st := range ordered {
		out[i] = models.StoryView{
			ID:             ids[i],
			Author:         cards[st.UserID],
			Items:          st.Items,
			HasUnseenItems: st.UserID != viewer && !seen[ids[i]],
			ExpiresAt:      st.ExpiresAt,
		}
	}
	return out, nil
}

func (s *StoryService) CreateStory(ctx context.Context, actor Actor, req models.CreateStoryRequest) (*models.Story, error) {
	if err := authorize(actor, permissions.CreateStories); err != nil {
		return nil, err
	}
	duration := req.Duration
	if duration == 0 {
		duration = defaultStoryDuration
	}
	now := s.now()
	story := &models.Story{
		UserID: actor.ID,
		Items: []models.StoryItem{{
			ID:        uuid.NewString(),
			Type:      req.Type,
			URL:       req.MediaURL,
			Duration:  duration,
			CreatedAt: now,
		}},
		CreatedAt: now,
		ExpiresAt: now.Add(models.StoryLifetime),
	}
	if err := s.d.Stories.CreateStory(ctx, story); err != nil {
		return nil, storeError(err, "story")
	}
	s.d.Broker.Publish(ctx, livequery.StoryTopics(actor.ID, friendIDs(ctx, s.d, actor.ID))...)
	return story, nil
}

func (s *StoryService) MarkSeen(ctx context.Context, actor Actor, storyID string) error {
	if _, err := s.visibleStory(ctx, actor, storyID); err != nil {
		return err
	}
	if err := s.d.Stories.MarkSeen(ctx, storyID, actor.ID); err != nil {
		return storeError(err, "story")
	}
	// seen state is per viewer
	s.d.Broker.Publish(ctx, livequery.StoriesTopic(actor.ID))
	return nil
}

func (s *StoryService) React(ctx context.Context, actor Actor, storyID, reaction string) error {
	story, err := s.visibleStory(ctx, actor, storyID)
	if err != nil {
		return err
	}
	if err := s.d.Stories.AddReaction(ctx, &models.StoryReaction{StoryID: storyID, UserID: actor.ID, Reaction: reaction}); err != nil {
		return storeError(err, "story reaction")
	}
	s.d.Events.Emit(ctx, jobs.Event{
		Type:      jobs.StoryReacted,
		ActorID:   actor.ID,
		SubjectID: story.UserID,
		TargetID:  storyID,
		Preview:   reaction,
	})
	return nil
}

// visibleStory loads an unexpired story the actor may see. Others' stories
// are reported as not found.
func (s *StoryService) visibleStory(ctx context.Context, actor Actor, id string) (*models.Story, error) {
	story, err := s.d.Stories.GetStoryByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "story")
	}
	if !story.ExpiresAt.After(s.now()) {
		return nil, apperrors.NewNotFoundError("story")
	}
	if story.UserID == actor.ID || actor.Can(permissions.ModerateContent) {
		return story, nil
	}
	ok, err := s.d.Friends.AreFriends(ctx, actor.ID, story.UserID)
	if err != nil {
		return nil, storeError(err, "friends")
	}
	if !ok {
		return nil, apperrors.NewNotFoundError("story")
	}
	return story, nil
}
