package jobs

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"go.uber.org/zap"
)

// Cleanup periodically removes expired stories and old read notifications.
type Cleanup struct {
	stories       repositories.StoryRepository
	notifications repositories.NotificationRepository
	publisher     livequery.Publisher
	interval      time.Duration
	retention     time.Duration
	now           func() time.Time
	log           *zap.Logger
}

func NewCleanup(
	stories repositories.StoryRepository,
	notifications repositories.NotificationRepository,
	publisher livequery.Publisher,
	interval, retention time.Duration,
	log *zap.Logger,
) *Cleanup {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleanup{
		stories:       stories,
		notifications: notifications,
		publisher:     publisher,
		interval:      interval,
		retention:     retention,
		now:           time.Now,
		log:           log.Named("cleanup"),
	}
}

type CleanupResult struct {
	Stories       int64
	Notifications int64
}

// RunOnce performs one sweep. Both deletions are attempted even if the first
// fails; the first error is returned.
func (c *Cleanup) RunOnce(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	now := c.now()

	stories, storyErr := c.stories.DeleteExpiredStories(ctx, now)
	if storyErr != nil {
		c.log.Warn("expired story cleanup failed", zap.Error(storyErr))
	} else if stories > 0 {
		res.Stories = stories
		metrics.CleanupDeleted.WithLabelValues("stories").Add(float64(stories))
		c.publisher.Publish(ctx, livequery.TopicStories)
	}

	notes, noteErr := c.notifications.DeleteReadOlderThan(ctx, now.Add(-c.retention))
	if noteErr != nil {
		c.log.Warn("notification cleanup failed", zap.Error(noteErr))
	} else {
		res.Notifications = notes
		metrics.CleanupDeleted.WithLabelValues("notifications").Add(float64(notes))
	}

	if storyErr != nil {
		return res, storyErr
	}
	return res, noteErr
}

// Serve implements suture.Service.
func (c *Cleanup) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := c.RunOnce(ctx)
			if err == nil && (res.Stories > 0 || res.Notifications > 0) {
				c.log.Info("cleanup sweep",
					zap.Int64("stories", res.Stories),
					zap.Int64("notifications", res.Notifications))
			}
		}
	}
}

func (c *Cleanup) String() string { return "jobs-cleanup" }
