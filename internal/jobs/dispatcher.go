package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/metrics"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 4
	handlerTimeout   = 10 * time.Second
)

type Handler func(ctx context.Context, ev Event) error

// Dispatcher queues events emitted by request handlers and runs the
// registered triggers off the request path.
type Dispatcher struct {
	queue    chan Event
	workers  int
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger, workers, queueSize int) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue:    make(chan Event, queueSize),
		workers:  workers,
		handlers: make(map[EventType][]Handler),
		log:      log.Named("jobs"),
	}
}

func (d *Dispatcher) On(t EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Emit enqueues ev without blocking. When the queue is full the event is
// dropped and counted.
func (d *Dispatcher) Emit(_ context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	select {
	case d.queue <- ev:
	default:
		metrics.TriggerExecutions.WithLabelValues(string(ev.Type), "dropped").Inc()
		d.log.Error("trigger queue full, dropping event", zap.String("event", string(ev.Type)))
	}
}

// Serve implements suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-d.queue:
					d.Dispatch(ctx, ev)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Dispatch runs every handler registered for ev synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.mu.RLock()
	handlers := d.handlers[ev.Type]
	d.mu.RUnlock()

	for _, h := range handlers {
		start := time.Now()
		err := d.run(ctx, h, ev)
		metrics.RecordTrigger(string(ev.Type), err, time.Since(start))
		if err != nil {
			d.log.Warn("trigger failed",
				zap.String("event", string(ev.Type)),
				zap.String("actor", ev.ActorID),
				zap.String("target", ev.TargetID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	return h(ctx, ev)
}

func (d *Dispatcher) String() string { return "jobs-dispatcher" }
