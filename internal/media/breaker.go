package media

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/anonto42/linkup/backend/internal/metrics"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerSettings tunes the circuit breaker in front of a Store.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore guards a Store with a circuit breaker. While the circuit is
// open calls fail fast with BACKEND_UNAVAILABLE.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[string]
	name string
	log  *zap.Logger
}

func NewBreakerStore(next Store, s BreakerSettings, log *zap.Logger) *BreakerStore {
	if log == nil {
		log = zap.NewNop()
	}
	name := "media-" + next.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// client-side failures do not count against the backend
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrObjectNotFound) || errors.Is(err, errTooLarge)
		},
	})
	return &BreakerStore{next: next, cb: cb, name: name, log: log}
}

func (b *BreakerStore) Name() string { return b.next.Name() }

// State exposes the breaker state for health reporting.
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) Put(ctx context.Context, obj Object, body io.Reader) (string, error) {
	return b.execute(func() (string, error) { return b.next.Put(ctx, obj, body) })
}

func (b *BreakerStore) Delete(ctx context.Context, name string) error {
	_, err := b.execute(func() (string, error) { return "", b.next.Delete(ctx, name) })
	return err
}

func (b *BreakerStore) execute(fn func() (string, error)) (string, error) {
	out, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		return out, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return "", apperrors.NewBackendUnavailableError(err, "media backend is temporarily unavailable")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return "", err
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
