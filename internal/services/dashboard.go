package services

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
)

type DashboardStats struct {
	PostsCount          int   `json:"posts_count"`
	FriendsCount        int   `json:"friends_count"`
	UnreadNotifications int64 `json:"unread_notifications"`
	OnlineFriends       int   `json:"online_friends"`
}

// DashboardSink receives the four dashboard streams. The streams are
// independent; a nil callback drops that stream's snapshots.
type DashboardSink struct {
	Stats         func(livequery.Snapshot[DashboardStats])
	Activities    func(livequery.Snapshot[models.PostView])
	Notifications func(livequery.Snapshot[models.NotificationView])
	OnlineFriends func(livequery.Snapshot[models.UserCompact])
}

const (
	dashboardActivities    = 5
	dashboardNotifications = 5
)

type DashboardService struct {
	d             Deps
	posts         *PostService
	friends       *FriendService
	notifications *NotificationService
}

func NewDashboardService(d Deps, posts *PostService, friends *FriendService, notifications *NotificationService) *DashboardService {
	return &DashboardService{d: d, posts: posts, friends: friends, notifications: notifications}
}

func (s *DashboardService) StatsQuery(uid string) livequery.Query[DashboardStats] {
	online := s.friends.OnlineFriendsQuery(uid)
	return livequery.Query[DashboardStats]{
		Stream: "dashboard_stats",
		Topics: []string{
			livequery.ProfileTopic(uid),
			livequery.NotificationsTopic(uid),
			livequery.FriendsTopic(uid),
		},
		Fetch: func(ctx context.Context) ([]DashboardStats, error) {
			u, err := s.d.Users.GetUserByID(ctx, uid)
			if err != nil {
				return nil, storeError(err, "user")
			}
			unread, err := s.d.Notifications.GetUnreadCount(ctx, uid)
			if err != nil {
				return nil, storeError(err, "notifications")
			}
			friends, err := online.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			return []DashboardStats{{
				PostsCount:          u.PostsCount,
				FriendsCount:        u.FriendsCount,
				UnreadNotifications: unread,
				OnlineFriends:       len(friends),
			}}, nil
		},
	}
}

// Subscribe opens the dashboard's four live queries for uid. The returned
// Unsubscribe releases all of them.
func (s *DashboardService) Subscribe(uid string, sink DashboardSink) livequery.Unsubscribe {
	b := s.d.Broker
	unsubs := []livequery.Unsubscribe{
		livequery.Subscribe(b, s.StatsQuery(uid), orDiscard(sink.Stats)),
		livequery.Subscribe(b, s.posts.UserPostsQuery(uid, uid, dashboardActivities), orDiscard(sink.Activities)),
		livequery.Subscribe(b, s.notifications.NotificationsQuery(uid, dashboardNotifications), orDiscard(sink.Notifications)),
		livequery.Subscribe(b, s.friends.OnlineFriendsQuery(uid), orDiscard(sink.OnlineFriends)),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func orDiscard[T any](fn func(livequery.Snapshot[T])) func(livequery.Snapshot[T]) {
	if fn == nil {
		return func(livequery.Snapshot[T]) {}
	}
	return fn
}
