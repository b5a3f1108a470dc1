package livequery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/metrics"
	"go.uber.org/zap"
)

// Snapshot is one delivery of a live query. Items is always the complete
// current result set and replaces whatever the consumer held before; it is
// never a delta. Err is set when the fetch failed, in which case Items is
// empty and the consumer should render a failed state.
type Snapshot[T any] struct {
	Items []T
	Seq   uint64
	Err   error
}

// Query describes a live query: the topics whose invalidation re-runs it and
// the fetch producing the full result set.
type Query[T any] struct {
	Stream string
	Topics []string
	Fetch  func(ctx context.Context) ([]T, error)
}

// Unsubscribe releases a subscription. It is idempotent, never waits for a
// callback and may be called before the first snapshot arrives or from
// inside the data callback. A callback already running when it is called
// runs to completion; no later one starts.
type Unsubscribe func()

type subscription[T any] struct {
	broker *Broker
	query  Query[T]
	onData func(Snapshot[T])
	w      *watcher

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu     sync.Mutex
	closed bool
	seq    uint64
}

// Subscribe registers q with the broker and starts delivering snapshots to
// onData. Registration happens before the first fetch, so an invalidation
// racing the initial load is never lost. Deliveries for one subscription are
// made from a single goroutine, in order. After Unsubscribe returns no new
// delivery starts; one that had already claimed its sequence number may
// still be inside onData.
func Subscribe[T any](b *Broker, q Query[T], onData func(Snapshot[T])) Unsubscribe {
	if q.Stream == "" {
		q.Stream = "query"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription[T]{
		broker: b,
		query:  q,
		onData: onData,
		ctx:    ctx,
		cancel: cancel,
	}
	s.w = b.watch(q.Topics)
	metrics.ActiveSubscriptions.WithLabelValues(q.Stream).Inc()

	go s.run()
	return s.unsubscribe
}

func (s *subscription[T]) unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.broker.unwatch(s.w)
		metrics.ActiveSubscriptions.WithLabelValues(s.query.Stream).Dec()
	})
}

func (s *subscription[T]) run() {
	for {
		items, err := s.fetch()
		if s.ctx.Err() != nil {
			return
		}
		s.deliver(items, err)

		var retry *time.Timer
		var retryC <-chan time.Time
		if err != nil {
			retry = time.NewTimer(s.broker.retryDelay)
			retryC = retry.C
		}
		select {
		case <-s.ctx.Done():
		case <-s.w.signal:
		case <-retryC:
		}
		if retry != nil {
			retry.Stop()
		}
		if s.ctx.Err() != nil {
			return
		}
	}
}

func (s *subscription[T]) fetch() (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SnapshotDeliveries.WithLabelValues(s.query.Stream, "panic").Inc()
			s.broker.log.Error("live query fetch panicked",
				zap.String("stream", s.query.Stream), zap.Any("panic", r))
			items, err = nil, fmt.Errorf("live query %s: fetch panicked: %v", s.query.Stream, r)
		}
	}()
	return s.query.Fetch(s.ctx)
}

func (s *subscription[T]) deliver(items []T, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.SnapshotDeliveries.WithLabelValues(s.query.Stream, "dropped").Inc()
		return
	}
	s.seq++
	snap := Snapshot[T]{Items: items, Seq: s.seq, Err: err}
	s.mu.Unlock()

	if snap.Err != nil {
		snap.Items = []T{}
		metrics.SnapshotDeliveries.WithLabelValues(s.query.Stream, "error").Inc()
	} else {
		if snap.Items == nil {
			snap.Items = []T{}
		}
		metrics.SnapshotDeliveries.WithLabelValues(s.query.Stream, "delivered").Inc()
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.SnapshotDeliveries.WithLabelValues(s.query.Stream, "panic").Inc()
			s.broker.log.Error("live query handler panicked",
				zap.String("stream", s.query.Stream), zap.Any("panic", r))
		}
	}()
	s.onData(snap)
}
