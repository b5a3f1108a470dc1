package services

import (
	"sync"

	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
)

type MutationState int

const (
	Pending MutationState = iota + 1
	Confirmed
	Failed
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

type mutation[V any] struct {
	prior V
	next  V
	state MutationState
}

// Optimistic tracks in-flight mutations per key. A key has at most one
// pending mutation; a failed one rolls back to the value it started from.
type Optimistic[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*mutation[V]
}

func NewOptimistic[K comparable, V any]() *Optimistic[K, V] {
	return &Optimistic[K, V]{entries: make(map[K]*mutation[V])}
}

// Begin records a pending change of key from prior to next. It returns a
// CONFLICT error while another mutation of key is pending.
func (o *Optimistic[K, V]) Begin(key K, prior, next V) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := o.entries[key]; ok && m.state == Pending {
		return apperrors.NewConflictError("another update of this item is in progress")
	}
	o.entries[key] = &mutation[V]{prior: prior, next: next, state: Pending}
	return nil
}

// Confirm commits the pending value and returns it.
func (o *Optimistic[K, V]) Confirm(key K) (V, bool) {
	return o.settle(key, Confirmed)
}

// Fail rolls back and returns the prior confirmed value.
func (o *Optimistic[K, V]) Fail(key K) (V, bool) {
	return o.settle(key, Failed)
}

// State is Pending while a mutation of key is in flight and zero otherwise.
func (o *Optimistic[K, V]) State(key K) MutationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if m, ok := o.entries[key]; ok {
		return m.state
	}
	return 0
}

func (o *Optimistic[K, V]) settle(key K, to MutationState) (V, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.entries[key]
	if !ok || m.state != Pending {
		var zero V
		return zero, false
	}
	delete(o.entries, key)
	if to == Confirmed {
		return m.next, true
	}
	return m.prior, true
}
