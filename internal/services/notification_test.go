package services

import (
	"context"
	"testing"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreadCount_TracksMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.addUser("alice", permissions.RoleUser)
	bob := f.addUser("bob", permissions.RoleUser)

	n := &models.Notification{RecipientID: "alice", ActorID: "bob", Type: models.NotificationLike, Title: "Like"}
	require.NoError(t, f.notes.CreateNotification(ctx, n))
	require.NoError(t, f.notes.CreateNotification(ctx, &models.Notification{RecipientID: "alice", Type: models.NotificationSystem}))

	count := &snapshots[int64]{}
	unsub := f.svc.Notifications.SubscribeToUnreadCount("alice", count.onData)
	defer unsub()
	count.waitFor(t, func(s livequery.Snapshot[int64]) bool { return len(s.Items) == 1 && s.Items[0] == 2 })

	// another user's id is reported as missing
	assertCode(t, f.svc.Notifications.MarkRead(ctx, bob, n.ID), apperrors.ErrCodeNotFound)

	require.NoError(t, f.svc.Notifications.MarkRead(ctx, alice, n.ID))
	count.waitFor(t, func(s livequery.Snapshot[int64]) bool { return s.Items[0] == 1 })

	marked, err := f.svc.Notifications.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	count.waitFor(t, func(s livequery.Snapshot[int64]) bool { return s.Items[0] == 0 })
}

func TestNotificationsQuery_AttachesActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("alice", permissions.RoleUser)
	f.addUser("bob", permissions.RoleUser)
	require.NoError(t, f.notes.CreateNotification(ctx, &models.Notification{RecipientID: "alice", ActorID: "bob", Type: models.NotificationLike}))

	list, err := f.svc.Notifications.NotificationsQuery("alice", 10).Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Actor)
	assert.Equal(t, "bob", list[0].Actor.Name)
}

func TestSendBulk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser("admin", permissions.RoleLevelAdmin)
	user := f.addUser("u1", permissions.RoleUser)
	f.addUser("u2", permissions.RoleUser)
	f.addUser("s1", permissions.RoleSupport)

	_, err := f.svc.Notifications.SendBulk(ctx, user, models.BulkNotificationRequest{Title: "t", Message: "m"})
	assertCode(t, err, apperrors.ErrCodeForbidden)

	_, err = f.svc.Notifications.SendBulk(ctx, admin, models.BulkNotificationRequest{Title: "t", Message: "m", Role: "wizard"})
	assertCode(t, err, apperrors.ErrCodeInvalidInput)

	sent, err := f.svc.Notifications.SendBulk(ctx, admin, models.BulkNotificationRequest{Title: "t", Message: "m", Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	support, err := f.notes.GetUnreadCount(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, support)

	u2, err := f.notes.GetUnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u2)
}
