// Package livequery implements live queries: long-lived registrations that
// re-run a fetch and deliver the complete result set every time one of the
// topics they watch is invalidated.
package livequery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Publisher is the write side of the broker that mutations depend on.
type Publisher interface {
	Publish(ctx context.Context, topics ...string)
}

// Relay forwards invalidations to other server instances.
type Relay interface {
	Forward(ctx context.Context, topics []string) error
}

// watcher is the broker-side half of a subscription. signal has capacity one
// so that any number of invalidations arriving during a fetch collapse into a
// single re-fetch.
type watcher struct {
	topics []string
	signal chan struct{}
}

func (w *watcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Broker maps topics to the subscriptions watching them.
type Broker struct {
	mu         sync.RWMutex
	topics     map[string]map[*watcher]struct{}
	relay      Relay
	log        *zap.Logger
	retryDelay time.Duration
}

type BrokerOption func(*Broker)

// WithRetryDelay sets how long a failed subscription waits before fetching
// again when no invalidation arrives first.
func WithRetryDelay(d time.Duration) BrokerOption {
	return func(b *Broker) { b.retryDelay = d }
}

func NewBroker(log *zap.Logger, opts ...BrokerOption) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Broker{
		topics:     make(map[string]map[*watcher]struct{}),
		log:        log.Named("livequery"),
		retryDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetRelay installs the cross-instance relay. Call before serving traffic.
func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	b.relay = r
	b.mu.Unlock()
}

// Publish invalidates topics on this instance and forwards them to the relay.
// Relay failures are logged; local subscribers are always woken.
func (b *Broker) Publish(ctx context.Context, topics ...string) {
	if len(topics) == 0 {
		return
	}
	b.Deliver(topics...)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Forward(ctx, topics); err != nil {
		b.log.Warn("relay forward failed", zap.Strings("topics", topics), zap.Error(err))
	}
}

// Deliver wakes local subscribers only. The relay calls this for
// invalidations received from other instances.
func (b *Broker) Deliver(topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range topics {
		for w := range b.topics[t] {
			w.notify()
		}
	}
}

// Subscribers returns how many subscriptions currently watch topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) watch(topics []string) *watcher {
	w := &watcher{topics: topics, signal: make(chan struct{}, 1)}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		set, ok := b.topics[t]
		if !ok {
			set = make(map[*watcher]struct{})
			b.topics[t] = set
		}
		set[w] = struct{}{}
	}
	return w
}

func (b *Broker) unwatch(w *watcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range w.topics {
		set := b.topics[t]
		delete(set, w)
		if len(set) == 0 {
			delete(b.topics, t)
		}
	}
}
