package livequery

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelay_Handle(t *testing.T) {
	b := NewBroker(nil)
	relay := NewRedisRelay(nil, b, nil)

	rec := &recorder{}
	unsub := Subscribe(b, Query[string]{Topics: []string{"posts:feed"}, Fetch: (&list{}).fetch}, rec.onData)
	defer unsub()
	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)

	own, _ := json.Marshal(invalidation{Instance: relay.Instance(), Topics: []string{"posts:feed"}})
	other, _ := json.Marshal(invalidation{Instance: "other-instance", Topics: []string{"posts:feed"}})
	empty, _ := json.Marshal(invalidation{Instance: "other-instance"})

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"own instance is skipped", string(own), false},
		{"malformed payload", "{not json", false},
		{"no topics", string(empty), false},
		{"other instance delivered", string(other), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relay.handle(tt.payload))
		})
	}

	require.Eventually(t, func() bool { return rec.count() == 2 }, eventually, 5*time.Millisecond)
}

func TestRedisRelay_ServeFailsWithoutRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	relay := NewRedisRelay(unreachableRedis(), NewBroker(nil), nil)
	assert.Error(t, relay.Serve(ctx))
	assert.Equal(t, "livequery-redis-relay", relay.String())
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}
