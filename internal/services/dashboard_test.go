package services

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_OpensFourStreamsAndReleasesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("alice", permissions.RoleUser)
	f.addUser("bob", permissions.RoleUser)
	f.befriend(t, "alice", "bob")

	stats := &snapshots[DashboardStats]{}
	activities := &snapshots[models.PostView]{}
	notes := &snapshots[models.NotificationView]{}
	online := &snapshots[models.UserCompact]{}

	unsub := f.svc.Dashboard.Subscribe("alice", DashboardSink{
		Stats:         stats.onData,
		Activities:    activities.onData,
		Notifications: notes.onData,
		OnlineFriends: online.onData,
	})

	stats.waitFor(t, func(s livequery.Snapshot[DashboardStats]) bool { return s.Seq == 1 })
	activities.waitFor(t, func(s livequery.Snapshot[models.PostView]) bool { return s.Seq == 1 })
	notes.waitFor(t, func(s livequery.Snapshot[models.NotificationView]) bool { return s.Seq == 1 })
	online.waitFor(t, func(s livequery.Snapshot[models.UserCompact]) bool { return s.Seq == 1 })
	assert.Equal(t, 1, f.broker.Subscribers(livequery.ProfileTopic("alice")))

	require.NoError(t, f.users.SetPresence(ctx, "bob", true, time.Now()))
	f.broker.Publish(ctx, livequery.PresenceTopics("bob", []string{"alice"})...)
	snap := stats.waitFor(t, func(s livequery.Snapshot[DashboardStats]) bool {
		return len(s.Items) == 1 && s.Items[0].OnlineFriends == 1
	})
	assert.Zero(t, snap.Items[0].UnreadNotifications)
	online.waitFor(t, func(s livequery.Snapshot[models.UserCompact]) bool { return len(s.Items) == 1 })

	unsub()
	assert.Zero(t, f.broker.Subscribers(livequery.ProfileTopic("alice")))
	assert.Zero(t, f.broker.Subscribers(livequery.FriendsTopic("alice")))
	assert.Zero(t, f.broker.Subscribers(livequery.NotificationsTopic("alice")))
	assert.Zero(t, f.broker.Subscribers(livequery.UserPostsTopic("alice")))
}

func TestDashboard_NilSinkIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.addUser("alice", permissions.RoleUser)

	stats := &snapshots[DashboardStats]{}
	unsub := f.svc.Dashboard.Subscribe("alice", DashboardSink{Stats: stats.onData})
	defer unsub()
	stats.waitFor(t, func(s livequery.Snapshot[DashboardStats]) bool { return s.Seq == 1 })
}
