package livequery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// list is a tiny mutable "table" the fetches read from.
type list struct {
	mu    sync.Mutex
	items []string
}

func (l *list) set(items ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
}

func (l *list) fetch(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.items...), nil
}

// recorder collects snapshots delivered to a subscription.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot[string]
}

func (r *recorder) onData(s Snapshot[string]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) last() Snapshot[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

type fakeRelay struct {
	mu     sync.Mutex
	topics [][]string
	err    error
}

func (f *fakeRelay) Forward(_ context.Context, topics []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topics)
	return f.err
}

const eventually = time.Second

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	b := NewBroker(nil)
	data := &list{}
	data.set("a", "b")
	rec := &recorder{}

	unsub := Subscribe(b, Query[string]{Stream: "test", Topics: []string{"t"}, Fetch: data.fetch}, rec.onData)
	defer unsub()

	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)
	snap := rec.last()
	assert.Equal(t, []string{"a", "b"}, snap.Items)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 1, b.Subscribers("t"))
}

func TestSubscribe_EmptyResultIsNotNil(t *testing.T) {
	b := NewBroker(nil)
	rec := &recorder{}
	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: (&list{}).fetch}, rec.onData)
	defer unsub()

	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)
	assert.NotNil(t, rec.last().Items)
	assert.Empty(t, rec.last().Items)
}

func TestSubscribe_SnapshotReplacesPriorState(t *testing.T) {
	b := NewBroker(nil)
	data := &list{}
	data.set("a", "b", "c")

	var mu sync.Mutex
	rendered := map[string]bool{}
	var deliveries int
	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: data.fetch}, func(s Snapshot[string]) {
		mu.Lock()
		defer mu.Unlock()
		rendered = map[string]bool{}
		for _, it := range s.Items {
			rendered[it] = true
		}
		deliveries++
	})
	defer unsub()

	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return deliveries == 1 }, eventually, 5*time.Millisecond)

	data.set("c", "d")
	b.Publish(context.Background(), "t")

	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return deliveries == 2 }, eventually, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{"c": true, "d": true}, rendered)
}

func TestSubscribe_IgnoresUnrelatedTopics(t *testing.T) {
	b := NewBroker(nil)
	rec := &recorder{}
	unsub := Subscribe(b, Query[string]{Topics: []string{"mine"}, Fetch: (&list{}).fetch}, rec.onData)
	defer unsub()
	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)

	b.Publish(context.Background(), "other")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestUnsubscribe_DropsLateInvalidations(t *testing.T) {
	b := NewBroker(nil)
	data := &list{}
	data.set("a")
	rec := &recorder{}

	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: data.fetch}, rec.onData)
	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)

	unsub()
	assert.Equal(t, 0, b.Subscribers("t"))

	data.set("late")
	b.Publish(context.Background(), "t")
	b.Deliver("t")
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, []string{"a"}, rec.last().Items)
}

func TestUnsubscribe_BeforeFirstSnapshotSuppressesDelivery(t *testing.T) {
	b := NewBroker(nil)
	release := make(chan struct{})
	started := make(chan struct{})
	rec := &recorder{}

	unsub := Subscribe(b, Query[string]{
		Topics: []string{"t"},
		Fetch: func(ctx context.Context) ([]string, error) {
			close(started)
			<-release
			return []string{"in-flight"}, nil
		},
	}, rec.onData)

	<-started
	unsub()
	close(release)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, rec.count())
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := NewBroker(nil)
	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: (&list{}).fetch}, func(Snapshot[string]) {})

	assert.NotPanics(t, func() {
		unsub()
		unsub()
		unsub()
	})
	assert.Equal(t, 0, b.Subscribers("t"))
}

func TestUnsubscribe_FromInsideCallback(t *testing.T) {
	b := NewBroker(nil)
	var unsub Unsubscribe
	var calls atomic.Int32
	ready := make(chan struct{})

	unsub = Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: (&list{}).fetch}, func(Snapshot[string]) {
		<-ready
		calls.Add(1)
		unsub()
	})
	close(ready)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, eventually, 5*time.Millisecond)
	b.Publish(context.Background(), "t")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, b.Subscribers("t"))
}

func TestUnsubscribe_WhileCallbackRunsElsewhere(t *testing.T) {
	b := NewBroker(nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: (&list{}).fetch}, func(Snapshot[string]) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	<-entered

	done := make(chan struct{})
	go func() {
		unsub()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(eventually):
		t.Fatal("unsubscribe blocked on a running callback")
	}

	b.Publish(context.Background(), "t")
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, b.Subscribers("t"))
}

func TestSubscribe_FetchErrorDeliversFailedSnapshot(t *testing.T) {
	b := NewBroker(nil, WithRetryDelay(10*time.Millisecond))
	var fail atomic.Bool
	fail.Store(true)
	rec := &recorder{}

	unsub := Subscribe(b, Query[string]{
		Topics: []string{"t"},
		Fetch: func(context.Context) ([]string, error) {
			if fail.Load() {
				return nil, errors.New("backend unavailable")
			}
			return []string{"ok"}, nil
		},
	}, rec.onData)
	defer unsub()

	require.Eventually(t, func() bool { return rec.count() >= 1 }, eventually, 5*time.Millisecond)
	first := rec.last()
	assert.Error(t, first.Err)
	assert.Empty(t, first.Items)

	fail.Store(false)
	require.Eventually(t, func() bool { return rec.last().Err == nil }, eventually, 5*time.Millisecond)
	assert.Equal(t, []string{"ok"}, rec.last().Items)
}

func TestSubscribe_FetchPanicBecomesError(t *testing.T) {
	b := NewBroker(nil, WithRetryDelay(time.Hour))
	rec := &recorder{}
	unsub := Subscribe(b, Query[string]{
		Topics: []string{"t"},
		Fetch:  func(context.Context) ([]string, error) { panic("boom") },
	}, rec.onData)
	defer unsub()

	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)
	assert.ErrorContains(t, rec.last().Err, "boom")
}

func TestSubscribe_HandlerPanicKeepsSubscriptionAlive(t *testing.T) {
	b := NewBroker(nil)
	var calls atomic.Int32
	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: (&list{}).fetch}, func(Snapshot[string]) {
		if calls.Add(1) == 1 {
			panic("render failed")
		}
	})
	defer unsub()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, eventually, 5*time.Millisecond)
	b.Publish(context.Background(), "t")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, eventually, 5*time.Millisecond)
}

func TestSubscribe_CoalescesInvalidations(t *testing.T) {
	b := NewBroker(nil)
	var fetches atomic.Int32
	gate := make(chan struct{})
	rec := &recorder{}

	unsub := Subscribe(b, Query[string]{
		Topics: []string{"t"},
		Fetch: func(context.Context) ([]string, error) {
			if fetches.Add(1) == 1 {
				<-gate
			}
			return []string{"x"}, nil
		},
	}, rec.onData)
	defer unsub()

	require.Eventually(t, func() bool { return fetches.Load() == 1 }, eventually, time.Millisecond)
	for i := 0; i < 10; i++ {
		b.Publish(context.Background(), "t")
	}
	close(gate)

	require.Eventually(t, func() bool { return rec.count() == 2 }, eventually, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), fetches.Load())
	assert.Equal(t, 2, rec.count())
}

func TestSubscribe_SequenceIsMonotonic(t *testing.T) {
	b := NewBroker(nil)
	data := &list{}
	rec := &recorder{}
	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: data.fetch}, rec.onData)
	defer unsub()

	for i := 1; i <= 3; i++ {
		require.Eventually(t, func() bool { return rec.count() == i }, eventually, 5*time.Millisecond)
		b.Publish(context.Background(), "t")
	}
	require.Eventually(t, func() bool { return rec.count() == 4 }, eventually, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, s := range rec.snaps {
		assert.Equal(t, uint64(i+1), s.Seq)
	}
}

func TestBroker_PublishForwardsToRelay(t *testing.T) {
	b := NewBroker(nil)
	relay := &fakeRelay{err: errors.New("redis down")}
	b.SetRelay(relay)

	rec := &recorder{}
	unsub := Subscribe(b, Query[string]{Topics: []string{"t"}, Fetch: (&list{}).fetch}, rec.onData)
	defer unsub()
	require.Eventually(t, func() bool { return rec.count() == 1 }, eventually, 5*time.Millisecond)

	b.Publish(context.Background(), "t", "u")
	require.Eventually(t, func() bool { return rec.count() == 2 }, eventually, 5*time.Millisecond)

	b.Deliver("t")
	require.Eventually(t, func() bool { return rec.count() == 3 }, eventually, 5*time.Millisecond)

	relay.mu.Lock()
	defer relay.mu.Unlock()
	assert.Equal(t, [][]string{{"t", "u"}}, relay.topics)
}
