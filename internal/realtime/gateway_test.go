package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/repositories/memory"
	"github.com/anonto42/linkup/backend/internal/services"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Seq   uint64          `json:"seq"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

// identity is a swappable resolver standing in for session auth.
type identity struct {
	mu       sync.Mutex
	actor    services.Actor
	err      error
	deadline time.Time
}

func (i *identity) set(a services.Actor, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.actor, i.err = a, err
}

func (i *identity) resolve(ctx context.Context) (services.Actor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deadline, _ = ctx.Deadline()
	return i.actor, i.err
}

func (i *identity) lastDeadline() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deadline
}

type harness struct {
	stores  *memory.Stores
	broker  *livequery.Broker
	svc     *services.Services
	gateway *Gateway
	who     *identity
	server  *httptest.Server
}

func newHarness(t *testing.T, origins ...string) *harness {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	st := memory.NewStores()
	broker := livequery.NewBroker(nil)
	svc := services.New(services.Deps{
		Users:         st.Users,
		Posts:         st.Posts,
		Comments:      st.Comments,
		Likes:         st.Likes,
		Saved:         st.Saved,
		Friends:       st.Friends,
		Notifications: st.Notifications,
		Stories:       st.Stories,
		Chats:         st.Chats,
		Broker:        broker,
		Log:           zap.NewNop(),
	})
	h := &harness{
		stores:  st,
		broker:  broker,
		svc:     svc,
		gateway: NewGateway(svc, broker, origins, zap.NewNop()),
		who:     &identity{},
	}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.gateway.Handle(w, r, h.who.resolve); err != nil {
			status := http.StatusInternalServerError
			if ae := apperrors.GetAppError(err); ae != nil {
				status = ae.HTTPStatus
			}
			http.Error(w, err.Error(), status)
		}
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) addUser(id string, role permissions.Role) services.Actor {
	h.stores.Users.Put(models.User{
		ID:                   id,
		Name:                 id,
		Role:                 role,
		NotificationSettings: models.DefaultNotificationSettings(),
		PrivacySettings:      models.DefaultPrivacySettings(),
	})
	return services.Actor{ID: id, Role: role}
}

func (h *harness) dial(t *testing.T, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func (h *harness) connect(t *testing.T, a services.Actor) *websocket.Conn {
	t.Helper()
	h.who.set(a, nil)
	ws, _, err := h.dial(t, "http://localhost:3000")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, b))
}

func next(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := ws.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(b, &f))
	return f
}

func posts(t *testing.T, f frame) []models.PostView {
	t.Helper()
	var out []models.PostView
	require.NoError(t, json.Unmarshal(f.Data, &out))
	return out
}

func TestGateway_SubscribeDeliversSnapshots(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	send(t, ws, Inbound{Type: TypeSubscribe, ID: "f1", Stream: "feed"})
	first := next(t, ws)
	assert.Equal(t, TypeSnapshot, first.Type)
	assert.Equal(t, "f1", first.ID)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Empty(t, posts(t, first))

	_, err := h.svc.Posts.CreatePost(context.Background(), alice, models.CreatePostRequest{Content: "hello"})
	require.NoError(t, err)

	second := next(t, ws)
	assert.Equal(t, TypeSnapshot, second.Type)
	assert.Greater(t, second.Seq, first.Seq)
	got := posts(t, second)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)
}

func TestGateway_UnsubscribeStopsDelivery(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	send(t, ws, Inbound{Type: TypeSubscribe, ID: "f1", Stream: "feed"})
	assert.Equal(t, TypeSnapshot, next(t, ws).Type)

	send(t, ws, Inbound{Type: TypeUnsubscribe, ID: "f1"})
	send(t, ws, Inbound{Type: TypePing, ID: "p1"})
	assert.Equal(t, TypePong, next(t, ws).Type)

	_, err := h.svc.Posts.CreatePost(context.Background(), alice, models.CreatePostRequest{Content: "unseen"})
	require.NoError(t, err)

	send(t, ws, Inbound{Type: TypePing, ID: "p2"})
	pong := next(t, ws)
	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, "p2", pong.ID)
	assert.Zero(t, h.broker.Subscribers(livequery.TopicFeed))
}

func TestGateway_ResubscribeSameIDReplaces(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	send(t, ws, Inbound{Type: TypeSubscribe, ID: "s", Stream: "feed"})
	assert.Equal(t, TypeSnapshot, next(t, ws).Type)
	send(t, ws, Inbound{Type: TypeSubscribe, ID: "s", Stream: "feed", Params: json.RawMessage(`{"limit":5}`)})
	assert.Equal(t, TypeSnapshot, next(t, ws).Type)

	assert.Eventually(t, func() bool {
		return h.broker.Subscribers(livequery.TopicFeed) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGateway_RejectsBadFrames(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	cases := []struct {
		name string
		in   Inbound
		code apperrors.ErrorCode
	}{
		{"unknown stream", Inbound{Type: TypeSubscribe, ID: "x", Stream: "nope"}, apperrors.ErrCodeInvalidInput},
		{"missing id", Inbound{Type: TypeSubscribe, Stream: "feed"}, apperrors.ErrCodeInvalidInput},
		{"chat without peer", Inbound{Type: TypeSubscribe, ID: "c", Stream: "chat"}, apperrors.ErrCodeInvalidInput},
		{"unknown type", Inbound{Type: "shout", ID: "y"}, apperrors.ErrCodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send(t, ws, tc.in)
			f := next(t, ws)
			assert.Equal(t, TypeError, f.Type)
			assert.Equal(t, string(tc.code), f.Code)
		})
	}
}

func TestGateway_ChatWithStrangerFailsAsSnapshotError(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	h.addUser("bob", permissions.RoleUser)
	ws := h.connect(t, alice)

	send(t, ws, Inbound{Type: TypeSubscribe, ID: "c", Stream: "chat", Params: json.RawMessage(`{"peerId":"bob"}`)})
	f := next(t, ws)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "c", f.ID)
	assert.Equal(t, string(apperrors.ErrCodeForbidden), f.Code)
	assert.NotZero(t, f.Seq)
}

func TestGateway_RevokedSessionClosesOnNextSubscribe(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	h.who.set(services.Actor{}, apperrors.NewUnauthenticatedError("session expired"))
	send(t, ws, Inbound{Type: TypeSubscribe, ID: "f1", Stream: "feed"})

	f := next(t, ws)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, string(apperrors.ErrCodeUnauthenticated), f.Code)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestGateway_SubscribeResolvesWithDeadline(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	sent := time.Now()
	send(t, ws, Inbound{Type: TypeSubscribe, ID: "f1", Stream: "feed"})
	f := next(t, ws)
	require.Equal(t, TypeSnapshot, f.Type)

	deadline := h.who.lastDeadline()
	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, sent.Add(writeWait), deadline, time.Second)
}

func TestGateway_UnauthenticatedHandshakeIsRefused(t *testing.T) {
	h := newHarness(t)
	h.who.set(services.Actor{}, apperrors.NewUnauthenticatedError("no session"))

	_, resp, err := h.dial(t, "http://localhost:3000")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_CheckOrigin(t *testing.T) {
	h := newHarness(t, "https://app.linkup.example")
	h.who.set(h.addUser("alice", permissions.RoleUser), nil)

	_, resp, err := h.dial(t, "https://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, _, err := h.dial(t, "https://app.linkup.example")
	require.NoError(t, err)
	_ = ws.Close()
}

func TestGateway_DisconnectReleasesSubscriptions(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)
	ws := h.connect(t, alice)

	send(t, ws, Inbound{Type: TypeSubscribe, ID: "a", Stream: "feed"})
	send(t, ws, Inbound{Type: TypeSubscribe, ID: "b", Stream: "notifications"})
	next(t, ws)
	next(t, ws)
	require.Equal(t, 1, h.gateway.Connections())

	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool {
		return h.gateway.Connections() == 0 &&
			h.broker.Subscribers(livequery.TopicFeed) == 0 &&
			h.broker.Subscribers(livequery.NotificationsTopic("alice")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_ServeClosesConnectionsOnShutdown(t *testing.T) {
	h := newHarness(t)
	alice := h.addUser("alice", permissions.RoleUser)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.gateway.Serve(ctx) }()

	ws := h.connect(t, alice)
	send(t, ws, Inbound{Type: TypePing, ID: "p"})
	assert.Equal(t, TypePong, next(t, ws).Type)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, h.gateway.Connections())
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed("https://a.example", []string{"https://a.example/"}))
	assert.True(t, originAllowed("", []string{"*"}))
	assert.False(t, originAllowed("", []string{"https://a.example"}))
	assert.False(t, originAllowed("https://b.example", []string{"https://a.example"}))
}

func TestStreams_AllRegistered(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"feed", "user_posts", "chat", "friends", "online_friends", "friend_requests",
		"notifications", "unread_count", "stories", "profile", "dashboard_stats",
	}, Streams())
}
