package livequery

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const InvalidationChannel = "linkup:invalidate"

type invalidation struct {
	Instance string   `json:"instance"`
	Topics   []string `json:"topics"`
}

// RedisRelay carries invalidations between server instances over Redis
// pub/sub. It runs as a supervised service.
type RedisRelay struct {
	client   redis.UniversalClient
	broker   *Broker
	instance string
	log      *zap.Logger
}

func NewRedisRelay(client redis.UniversalClient, broker *Broker, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{
		client:   client,
		broker:   broker,
		instance: uuid.NewString(),
		log:      log.Named("relay"),
	}
}

func (r *RedisRelay) Instance() string { return r.instance }

func (r *RedisRelay) Forward(ctx context.Context, topics []string) error {
	payload, err := json.Marshal(invalidation{Instance: r.instance, Topics: topics})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, InvalidationChannel, payload).Err()
}

// Serve implements suture.Service.
func (r *RedisRelay) Serve(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("relay subscribed", zap.String("instance", r.instance))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay: subscription channel closed")
			}
			r.handle(msg.Payload)
		}
	}
}

// handle applies a received invalidation locally. It reports whether the
// message came from another instance and was delivered.
func (r *RedisRelay) handle(payload string) bool {
	var inv invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		r.log.Warn("dropping malformed invalidation", zap.Error(err))
		return false
	}
	if inv.Instance == r.instance || len(inv.Topics) == 0 {
		return false
	}
	r.broker.Deliver(inv.Topics...)
	return true
}

func (r *RedisRelay) String() string { return "livequery-redis-relay" }
