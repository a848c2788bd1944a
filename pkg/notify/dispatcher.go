package notify

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
)

var (
	// ErrQueueFull indicates a notification was dropped because the queue is full.
	ErrQueueFull = errors.New("notification queue full")
	// ErrDeliveryFailed indicates a transport rejected the message.
	ErrDeliveryFailed = errors.New("notification delivery failed")
	// ErrDispatcherClosed indicates Notify was called after Close.
	ErrDispatcherClosed = errors.New("notification dispatcher closed")
)

// Dispatcher queues notifications and delivers them in the background,
// paced by a token bucket. Notify never waits on the network.
type Dispatcher struct {
	prefix     string
	transports []Transport
	limiter    *rate.Limiter
	queue      chan Message
	logger     *logging.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Prefix     string
	Transports []Transport
	RateLimit  float64 // messages per second, <= 0 disables pacing
	Burst      int
	QueueSize  int
	Logger     *logging.Logger
}

// NewDispatcher creates a dispatcher. Call Run to start delivery.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	return &Dispatcher{
		prefix:     cfg.Prefix,
		transports: cfg.Transports,
		limiter:    rate.NewLimiter(limit, burst),
		queue:      make(chan Message, size),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Notify enqueues msg. It returns ErrQueueFull instead of blocking.
func (d *Dispatcher) Notify(_ context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		metrics.RecordNotification("dropped")
		d.logger.Warn("Notification queue full, dropping message", "source", msg.Source, "text", msg.Text)
		return ErrQueueFull
	}
}

// Run delivers queued messages until ctx is cancelled or Close drains the queue.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			d.deliver(ctx, msg)
		}
	}
}

// Close stops accepting messages and waits for Run to drain the queue.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	text := msg.String()
	if d.prefix != "" {
		text = d.prefix + " " + text
	}

	for _, t := range d.transports {
		if err := t.Send(ctx, text, msg); err != nil {
			metrics.RecordNotification("failed")
			d.logger.Error("Failed to deliver notification", "transport", t.Name(), "error", err)
			continue
		}
		metrics.RecordNotification("sent")
	}
}

// LogTransport writes notifications to the log.
type LogTransport struct {
	Logger *logging.Logger
}

// Name implements Transport.
func (LogTransport) Name() string { return "log" }

// Send implements Transport.
func (l LogTransport) Send(_ context.Context, _ string, msg Message) error {
	switch msg.Level {
	case LevelError:
		l.Logger.Error(msg.Text, "source", msg.Source, "notification", true)
	case LevelWarn:
		l.Logger.Warn(msg.Text, "source", msg.Source, "notification", true)
	default:
		l.Logger.Info(msg.Text, "source", msg.Source, "notification", true)
	}
	return nil
}
