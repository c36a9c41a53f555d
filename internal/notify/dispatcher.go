package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/giftsbydivi/gifts-by-divi-sub000/internal/notify"
	defaultQueueSize    = 256
	defaultSendTimeout  = 2 * time.Second
	defaultDrainTimeout = 5 * time.Second
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

// Sink delivers notifications to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets how many notifications may wait for delivery.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithSendTimeout bounds each sink call.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithDrainTimeout bounds how long Run keeps delivering queued notifications after shutdown starts.
func WithDrainTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.drainTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// Dispatcher queues notifications and fans them out to every sink from a single goroutine.
// Notify never blocks: a full queue drops the notification.
type Dispatcher struct {
	sinks        []Sink
	logger       *slog.Logger
	queueSize    int
	sendTimeout  time.Duration
	drainTimeout time.Duration
	delivered    metric.Int64Counter
	dropped      metric.Int64Counter

	queue   chan Notification
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher delivering to sinks. Call Run to start delivery.
func NewDispatcher(sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sinks:        sinks,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		queueSize:    defaultQueueSize,
		sendTimeout:  defaultSendTimeout,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "notify_dispatcher")
	d.queue = make(chan Notification, d.queueSize)

	meter := otel.Meter(instrumentationName)
	d.delivered = newCounter(meter, d.logger, "cart.notifications.delivered",
		"Notifications handed to a sink, by sink and outcome")
	d.dropped = newCounter(meter, d.logger, "cart.notifications.dropped",
		"Notifications dropped because the queue was full")
	return d
}

func newCounter(meter metric.Meter, logger *slog.Logger, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("Failed to create notification counter", "counter", name, "error", err)
	}
	return counter
}

// Notify queues n for delivery. Returns ErrQueueFull or ErrStopped when n is dropped.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		if d.dropped != nil {
			d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
		}
		d.logger.WarnContext(ctx, "Dropping notification", "kind", n.Kind, "cart", n.Cart, "queue_size", d.queueSize)
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is done, then drains what is left within the drain timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		case <-ctx.Done():
			d.drain(ctx)
			return nil
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.drainTimeout)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			d.deliver(drainCtx, n)
		default:
			return
		}
		if drainCtx.Err() != nil {
			d.logger.Warn("Notification drain timed out", "remaining", len(d.queue))
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
		err := sink.Send(sendCtx, n)
		cancel()

		outcome := "ok"
		if err != nil {
			outcome = "error"
			d.logger.Error("Failed to deliver notification",
				"sink", sink.Name(), "kind", n.Kind, "cart", n.Cart, "error", err)
		}
		if d.delivered != nil {
			d.delivered.Add(ctx, 1, metric.WithAttributes(
				attribute.String("sink", sink.Name()),
				attribute.String("outcome", outcome),
			))
		}
	}
}
