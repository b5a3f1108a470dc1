package realtime

import (
	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/services"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

// emitFunc receives every snapshot of one subscription.
type emitFunc func(seq uint64, data interface{}, err error)

type opener func(svc *services.Services, a services.Actor, p Params) (subscriber, error)

type subscriber func(b *livequery.Broker, emit emitFunc) livequery.Unsubscribe

func open[T any](q livequery.Query[T]) subscriber {
	return func(b *livequery.Broker, emit emitFunc) livequery.Unsubscribe {
		return livequery.Subscribe(b, q, func(s livequery.Snapshot[T]) {
			emit(s.Seq, s.Items, s.Err)
		})
	}
}

var streams = map[string]opener{
	"feed": func(svc *services.Services, a services.Actor, p Params) (subscriber, error) {
		return open(svc.Posts.FeedQuery(a.ID, p.Limit)), nil
	},
	"user_posts": func(svc *services.Services, a services.Actor, p Params) (subscriber, error) {
		uid := p.UserID
		if uid == "" {
			uid = a.ID
		}
		return open(svc.Posts.UserPostsQuery(a.ID, uid, p.Limit)), nil
	},
	"chat": func(svc *services.Services, a services.Actor, p Params) (subscriber, error) {
		if p.PeerID == "" || p.PeerID == a.ID {
			return nil, apperrors.NewInvalidInputError("chat needs a peerId other than yourself")
		}
		return open(svc.Chat.ChatQuery(a.ID, p.PeerID, p.Limit)), nil
	},
	"friends": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Friends.FriendsQuery(a.ID)), nil
	},
	"online_friends": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Friends.OnlineFriendsQuery(a.ID)), nil
	},
	"friend_requests": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Friends.RequestsQuery(a.ID)), nil
	},
	"notifications": func(svc *services.Services, a services.Actor, p Params) (subscriber, error) {
		return open(svc.Notifications.NotificationsQuery(a.ID, p.Limit)), nil
	},
	"unread_count": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Notifications.UnreadCountQuery(a.ID)), nil
	},
	"stories": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Stories.StoriesQuery(a.ID)), nil
	},
	"profile": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Profiles.ProfileQuery(a.ID)), nil
	},
	"dashboard_stats": func(svc *services.Services, a services.Actor, _ Params) (subscriber, error) {
		return open(svc.Dashboard.StatsQuery(a.ID)), nil
	},
}

// Streams lists the stream names a client may subscribe to.
func Streams() []string {
	out := make([]string, 0, len(streams))
	for name := range streams {
		out = append(out, name)
	}
	return out
}
