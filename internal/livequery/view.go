package livequery

import (
	"sync"

	"github.com/anonto42/linkup/backend/internal/metrics"
)

type State int

const (
	Loading State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "loading"
	}
}

// ViewState is what a consumer renders.
type ViewState[T any] struct {
	State State
	Items []T
	Err   error
	Seq   uint64
}

// View holds the state of one logical consumer of a live query. At most one
// subscription is active per view: Bind releases the previous one before
// opening the next, and snapshots from any handle that is no longer the
// active one are dropped instead of applied.
type View[T any] struct {
	mu     sync.Mutex
	gen    uint64
	stream string
	unsub  Unsubscribe
	state  ViewState[T]

	emitMu   sync.Mutex
	onChange func(ViewState[T])
}

func NewView[T any](onChange func(ViewState[T])) *View[T] {
	if onChange == nil {
		onChange = func(ViewState[T]) {}
	}
	return &View[T]{onChange: onChange, state: ViewState[T]{State: Loading}}
}

// Bind points the view at q, replacing any earlier query.
func (v *View[T]) Bind(b *Broker, q Query[T]) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	old := v.unsub
	v.unsub = nil
	v.stream = q.Stream
	v.state = ViewState[T]{State: Loading}
	v.mu.Unlock()

	if old != nil {
		old()
	}

	unsub := Subscribe(b, q, func(s Snapshot[T]) { v.apply(gen, s) })

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		unsub()
		return
	}
	v.unsub = unsub
	v.mu.Unlock()
}

// Release tears down the active subscription. The view keeps its last state.
func (v *View[T]) Release() {
	v.mu.Lock()
	v.gen++
	old := v.unsub
	v.unsub = nil
	v.mu.Unlock()
	if old != nil {
		old()
	}
}

func (v *View[T]) Current() ViewState[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View[T]) apply(gen uint64, s Snapshot[T]) {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	if v.gen != gen {
		stream := v.stream
		v.mu.Unlock()
		metrics.SnapshotDeliveries.WithLabelValues(stream, "dropped").Inc()
		return
	}
	next := ViewState[T]{State: Ready, Items: s.Items, Seq: s.Seq}
	if s.Err != nil {
		next = ViewState[T]{State: Failed, Items: []T{}, Err: s.Err, Seq: s.Seq}
	}
	v.state = next
	v.mu.Unlock()

	v.onChange(next)
}
