package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories/memory"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPresence struct {
	mock.Mock
}

func (m *mockPresence) SetPresence(ctx context.Context, uid string, online bool, at time.Time) error {
	args := m.Called(ctx, uid, online, at)
	return args.Error(0)
}

type publishLog struct {
	mu     sync.Mutex
	topics []string
}

func (p *publishLog) Publish(_ context.Context, topics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topics...)
}

// flakyUsers fails selected calls of an otherwise working store.
type flakyUsers struct {
	*memory.UserStore
	createErr   error
	presenceErr error
}

func (f *flakyUsers) CreateIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	return f.UserStore.CreateIfAbsent(ctx, u)
}

func (f *flakyUsers) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	if f.presenceErr != nil {
		return f.presenceErr
	}
	return f.UserStore.SetPresence(ctx, id, online, at)
}

var alice = &Identity{UID: "uid-alice", Email: "alice@example.com", Name: "Alice"}

func TestMaterialize_FirstLoginCreatesProfile(t *testing.T) {
	users := memory.NewUserStore()
	pub := &publishLog{}
	m := NewMaterializer(users, nil, nil, pub, nil)

	user, created, err := m.Materialize(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, users.Len())
	assert.Equal(t, permissions.RoleUser, user.Role)
	assert.Equal(t, 0, user.PostsCount)
	assert.Equal(t, 0, user.FriendsCount)
	assert.True(t, user.IsOnline)
	assert.Equal(t, models.DefaultPrivacySettings(), user.PrivacySettings)
	assert.Equal(t, []string{"profile:uid-alice"}, pub.topics)
}

func TestMaterialize_SecondLoginNeverOverwritesRoleOrCounters(t *testing.T) {
	users := memory.NewUserStore()
	users.Put(models.User{
		ID:         alice.UID,
		Name:       "Alice Admin",
		Role:       permissions.RoleLevelAdmin,
		PostsCount: 7,
		IsOnline:   false,
	})
	m := NewMaterializer(users, nil, nil, &publishLog{}, nil)

	user, created, err := m.Materialize(context.Background(), alice)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, permissions.RoleLevelAdmin, user.Role)
	assert.Equal(t, 7, user.PostsCount)
	assert.Equal(t, "Alice Admin", user.Name)
	assert.True(t, user.IsOnline)
}

func TestMaterialize_ConcurrentLoginsCreateOneProfile(t *testing.T) {
	users := memory.NewUserStore()
	m := NewMaterializer(users, nil, nil, &publishLog{}, nil)

	const tabs = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	creations := 0
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := m.Materialize(context.Background(), alice)
			assert.NoError(t, err)
			if created {
				mu.Lock()
				creations++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, creations)
	assert.Equal(t, 1, users.Len())
}

func TestMaterialize_StoreFailureIsBackendUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		users *flakyUsers
		seed  bool
	}{
		{"create fails", &flakyUsers{UserStore: memory.NewUserStore(), createErr: errors.New("connection refused")}, false},
		{"presence touch fails", &flakyUsers{UserStore: memory.NewUserStore(), presenceErr: errors.New("timeout")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seed {
				tt.users.Put(models.User{ID: alice.UID})
			}
			m := NewMaterializer(tt.users, nil, nil, &publishLog{}, nil)
			user, _, err := m.Materialize(context.Background(), alice)
			assert.Nil(t, user)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackendUnavailable))
			assert.False(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthenticated))
		})
	}
}

func TestMaterialize_SuspendedProfileIsForbidden(t *testing.T) {
	users := memory.NewUserStore()
	users.Put(models.User{ID: alice.UID, IsSuspended: true})
	pub := &publishLog{}
	m := NewMaterializer(users, nil, nil, pub, nil)

	_, _, err := m.Materialize(context.Background(), alice)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	user, err := users.GetUserByID(context.Background(), alice.UID)
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
	assert.Empty(t, pub.topics)
}

func TestMaterialize_SuspensionAfterLogoutKeepsProfileOffline(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserStore()
	m := NewMaterializer(users, nil, nil, &publishLog{}, nil)

	_, _, err := m.Materialize(ctx, alice)
	require.NoError(t, err)
	m.Logout(ctx, alice.UID)
	require.NoError(t, users.SetSuspended(ctx, alice.UID, true))

	_, _, err = m.Materialize(ctx, alice)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	user, err := users.GetUserByID(ctx, alice.UID)
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
}

type staticFriends struct {
	ids []string
	err error
}

func (s staticFriends) GetFriendIDs(context.Context, string) ([]string, error) {
	return s.ids, s.err
}

func TestMaterialize_PresenceReachesFriendListsOnly(t *testing.T) {
	tests := []struct {
		name    string
		friends staticFriends
		want    []string
	}{
		{
			name:    "friends",
			friends: staticFriends{ids: []string{"uid-bob", "uid-carol"}},
			want:    []string{"profile:uid-alice", "friends:uid-bob", "friends:uid-carol"},
		},
		{
			name:    "lookup fails",
			friends: staticFriends{err: errors.New("db down")},
			want:    []string{"profile:uid-alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &publishLog{}
			m := NewMaterializer(memory.NewUserStore(), tt.friends, nil, pub, nil)

			_, _, err := m.Materialize(context.Background(), alice)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pub.topics)

			pub.topics = nil
			m.Logout(context.Background(), alice.UID)
			assert.Equal(t, tt.want, pub.topics)
		})
	}
}

func TestMaterialize_MissingUID(t *testing.T) {
	m := NewMaterializer(memory.NewUserStore(), nil, nil, &publishLog{}, nil)
	_, _, err := m.Materialize(context.Background(), &Identity{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthenticated))
}

func TestMaterialize_MirrorFailureIsNotFatal(t *testing.T) {
	presence := &mockPresence{}
	presence.On("SetPresence", mock.Anything, alice.UID, true, mock.Anything).Return(errors.New("firestore down"))

	m := NewMaterializer(memory.NewUserStore(), nil, presence, &publishLog{}, nil)
	_, created, err := m.Materialize(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, created)
	presence.AssertExpectations(t)
}

func TestLogout_MarksOffline(t *testing.T) {
	users := memory.NewUserStore()
	presence := &mockPresence{}
	presence.On("SetPresence", mock.Anything, alice.UID, true, mock.Anything).Return(nil)
	presence.On("SetPresence", mock.Anything, alice.UID, false, mock.Anything).Return(nil)
	pub := &publishLog{}
	m := NewMaterializer(users, nil, presence, pub, nil)

	_, _, err := m.Materialize(context.Background(), alice)
	require.NoError(t, err)

	m.Logout(context.Background(), alice.UID)

	user, err := users.GetUserByID(context.Background(), alice.UID)
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
	presence.AssertExpectations(t)
}

func TestLogout_PresenceFailureStillCompletes(t *testing.T) {
	users := &flakyUsers{UserStore: memory.NewUserStore(), presenceErr: errors.New("db down")}
	presence := &mockPresence{}
	presence.On("SetPresence", mock.Anything, alice.UID, false, mock.Anything).Return(errors.New("firestore down"))
	pub := &publishLog{}
	m := NewMaterializer(users, nil, presence, pub, nil)

	assert.NotPanics(t, func() { m.Logout(context.Background(), alice.UID) })
	assert.Contains(t, pub.topics, "profile:uid-alice")
	presence.AssertExpectations(t)
}
