//go:build integration

package repositories

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	skipIfNoDocker(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "linkup",
				"POSTGRES_PASSWORD": "linkup",
				"POSTGRES_DB":       "linkup",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=linkup password=linkup dbname=linkup sslmode=disable", host, port.Port())
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.FriendRequest{}, &models.Comment{}, &models.Like{},
		&models.SavedPost{}, &models.StorySeen{}, &models.StoryReaction{}, &models.Notification{},
	))
	return db
}

func TestPostgresUserRepository_ConcurrentCreateIfAbsent(t *testing.T) {
	db := startPostgres(t)
	repo := NewPostgresUserRepository(db)
	ctx := context.Background()

	const tabs = 8
	var wg sync.WaitGroup
	created := make(chan bool, tabs)
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CreateIfAbsent(ctx, &models.User{
				ID: "uid-e", Email: "e@example.com", Name: "E", Role: permissions.RoleUser, IsOnline: true,
			})
			assert.NoError(t, err)
			created <- ok
		}()
	}
	wg.Wait()
	close(created)

	wins := 0
	for ok := range created {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", "uid-e").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPostgresUserRepository_NeverOverwritesRoleOrCounters(t *testing.T) {
	db := startPostgres(t)
	repo := NewPostgresUserRepository(db)
	ctx := context.Background()

	_, err := repo.CreateIfAbsent(ctx, &models.User{ID: "uid-a", Role: permissions.RoleUser})
	require.NoError(t, err)
	require.NoError(t, repo.SetRole(ctx, "uid-a", permissions.RoleSupport))
	require.NoError(t, repo.IncrementPostsCount(ctx, "uid-a", 2))

	created, err := repo.CreateIfAbsent(ctx, &models.User{ID: "uid-a", Role: permissions.RoleUser})
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.GetUserByID(ctx, "uid-a")
	require.NoError(t, err)
	assert.Equal(t, permissions.RoleSupport, u.Role)
	assert.Equal(t, 2, u.PostsCount)

	require.NoError(t, repo.IncrementPostsCount(ctx, "uid-a", -5))
	u, _ = repo.GetUserByID(ctx, "uid-a")
	assert.Equal(t, 0, u.PostsCount)
}

func TestPostgresNotificationRepository_MarkAsReadIsOwnerScoped(t *testing.T) {
	db := startPostgres(t)
	repo := NewPostgresNotificationRepository(db)
	ctx := context.Background()

	n := &models.Notification{RecipientID: "owner", Type: models.NotificationComment, Title: "hi"}
	require.NoError(t, repo.CreateNotification(ctx, n))

	ok, err := repo.MarkAsRead(ctx, "intruder", n.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkAsRead(ctx, "owner", n.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	unread, err := repo.GetUnreadCount(ctx, "owner")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestPostgresFriendshipRepository_Lifecycle(t *testing.T) {
	db := startPostgres(t)
	repo := NewPostgresFriendshipRepository(db)
	ctx := context.Background()

	req := &models.FriendRequest{SenderID: "a", ReceiverID: "b"}
	require.NoError(t, repo.SendFriendRequest(ctx, req))
	assert.ErrorIs(t, repo.SendFriendRequest(ctx, &models.FriendRequest{SenderID: "b", ReceiverID: "a"}), ErrAlreadyExists)

	ok, err := repo.UpdateStatus(ctx, req.ID, models.FriendStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	friends, err := repo.AreFriends(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, friends)

	ids, err := repo.GetFriendIDs(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	removed, err := repo.DeleteFriendship(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, removed)
}
