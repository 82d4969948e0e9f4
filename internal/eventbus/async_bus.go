// Package eventbus publishes run and step lifecycle events to subscribers.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// Defaults for NewAsyncBus.
const (
	DefaultQueueSize     = 256
	DefaultWorkers       = 4
	DefaultRetries       = 2
	DefaultRetryInterval = 50 * time.Millisecond
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// AsyncBus delivers events from a buffered queue on a fixed set of workers.
// Events from one publisher may be delivered out of order when more than one
// worker is configured.
type AsyncBus struct {
	// mu guards closed and sends on queue; subsMu guards subs.
	mu     sync.RWMutex
	closed bool
	subsMu sync.RWMutex
	subs   map[string]subscription

	queue   chan delivery
	workers *pool.Pool

	queueSize     int
	workerCount   int
	retries       int
	retryInterval time.Duration
	logger        *slog.Logger
}

type subscription struct {
	filter  Filter
	handler Handler
}

type delivery struct {
	ctx   context.Context
	event Event
}

// Option configures an AsyncBus.
type Option func(*AsyncBus)

// WithQueueSize sets how many events can wait for a worker.
func WithQueueSize(size int) Option {
	return func(b *AsyncBus) {
		if size >= 0 {
			b.queueSize = size
		}
	}
}

// WithWorkers sets the number of delivery workers.
func WithWorkers(count int) Option {
	return func(b *AsyncBus) {
		if count > 0 {
			b.workerCount = count
		}
	}
}

// WithHandlerRetries sets how often a failing handler is retried and the
// pause between attempts.
func WithHandlerRetries(retries int, interval time.Duration) Option {
	return func(b *AsyncBus) {
		if retries >= 0 {
			b.retries = retries
		}
		b.retryInterval = interval
	}
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *AsyncBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewAsyncBus creates a bus and starts its workers.
func NewAsyncBus(options ...Option) *AsyncBus {
	b := &AsyncBus{
		subs:          make(map[string]subscription),
		queueSize:     DefaultQueueSize,
		workerCount:   DefaultWorkers,
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
	}
	for _, option := range options {
		option(b)
	}

	b.queue = make(chan delivery, b.queueSize)
	b.workers = pool.New().WithMaxGoroutines(b.workerCount)
	for i := 0; i < b.workerCount; i++ {
		b.workers.Go(func() {
			for d := range b.queue {
				b.dispatch(d)
			}
		})
	}
	return b
}

// Publish implements Bus. It fails when ctx is already done or the bus is
// closed, and waits for queue space at most until ctx is done. Handlers get
// ctx without its cancellation so end-of-run events are still delivered.
func (b *AsyncBus) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.queue <- delivery{ctx: context.WithoutCancel(ctx), event: e}:
		return nil
	}
}

// Subscribe implements Bus.
func (b *AsyncBus) Subscribe(filter Filter, handler Handler) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("handler cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return "", ErrClosed
	}

	id := uuid.New().String()
	b.subsMu.Lock()
	b.subs[id] = subscription{filter: filter, handler: handler}
	b.subsMu.Unlock()
	return id, nil
}

// Unsubscribe implements Bus.
func (b *AsyncBus) Unsubscribe(subscriptionID string) error {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if _, ok := b.subs[subscriptionID]; !ok {
		return fmt.Errorf("unknown subscription %q", subscriptionID)
	}
	delete(b.subs, subscriptionID)
	return nil
}

// Close implements Bus. Calling it more than once is a no-op.
func (b *AsyncBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.workers.Wait()
	return nil
}

func (b *AsyncBus) dispatch(d delivery) {
	b.subsMu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.Matches(d.event) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.subsMu.RUnlock()

	for _, handler := range handlers {
		b.deliver(d.ctx, d.event, handler)
	}
}

func (b *AsyncBus) deliver(ctx context.Context, e Event, handler Handler) {
	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if attempt > 0 && b.retryInterval > 0 {
			time.Sleep(b.retryInterval)
		}
		if err = callHandler(ctx, e, handler); err == nil {
			return
		}
	}
	b.logger.Warn("event handler failed",
		"event_type", e.Type,
		"execution_id", e.ExecutionID,
		"attempts", b.retries+1,
		"error", err,
	)
}

// callHandler reports a handler panic as an error.
func callHandler(ctx context.Context, e Event, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler(ctx, e)
}

var _ Bus = (*AsyncBus)(nil)
