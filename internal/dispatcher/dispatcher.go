// Package dispatcher routes host commands to their handlers.
//
// Most commands run synchronously on the caller's goroutine, which for the
// overlay is the host tick. Buffered commands run on a worker goroutine of
// their own and reply "queued" straight away.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/foothold/extension/internal/dispatcher"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("handler panicked")
)

// Event represents an incoming command from the host.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*routeConfig)

type routeConfig struct {
	bufferSize int
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
// Events arriving while the queue is full are rejected with ErrQueueFull.
// Buffered handlers run on their own goroutine, so they must not touch
// state owned by the host tick.
func Buffered(size int) Option {
	return func(c *routeConfig) {
		c.bufferSize = size
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *routeConfig) {
		c.logged = true
	}
}

// NewOption configures a Dispatcher.
type NewOption func(*Dispatcher)

// WithMeter records dispatcher metrics on m instead of the global meter.
func WithMeter(m metric.Meter) NewOption {
	return func(d *Dispatcher) {
		d.meter = m
	}
}

// route is one registered command.
type route struct {
	command string
	handler HandlerFunc
	buffer  chan Event
	// attrs is built once per route
	attrs metric.MeasurementOption
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger
	meter  metric.Meter

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
	reg       metric.Registration

	mu      sync.RWMutex
	routes  map[string]*route
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger. Without WithMeter it
// uses the global OTel meter (no-op if not configured).
func New(logger Logger, opts ...NewOption) (*Dispatcher, error) {
	d := &Dispatcher{
		routes: make(map[string]*route),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.meter == nil {
		d.meter = otel.Meter(instrumentationName)
	}
	if err := d.initMetrics(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initMetrics() error {
	m := d.meter
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}

	d.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for _, r := range d.routes {
				if r.buffer != nil {
					o.ObserveInt64(d.queueSize, int64(len(r.buffer)),
						metric.WithAttributes(attribute.String("command", r.command)))
				}
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events whose handler returned an error"),
	)
	if err != nil {
		return fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"dispatcher.event.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}
	return nil
}

// Register adds a handler for the given command with optional configuration.
// Registering a command again replaces its handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := &route{
		command: command,
		attrs:   metric.WithAttributeSet(attribute.NewSet(attribute.String("command", command))),
	}
	r.handler = d.withMetrics(r, h)

	if cfg.bufferSize > 0 {
		r.buffer = make(chan Event, cfg.bufferSize)
		d.startWorker(r, r.handler)
		r.handler = d.enqueue(r)
	}

	if cfg.logged {
		r.handler = d.withLogging(command, r.handler)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.routes[command]; ok && old.buffer != nil {
		close(old.buffer)
	}
	d.routes[command] = r
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[e.Command]
	closed := d.closed
	d.mu.RUnlock()
	switch {
	case closed:
		return nil, ErrClosed
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	return r.handler(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.routes))
	for cmd := range d.routes {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting events and waits until every buffered event queued
// so far has been handled.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, r := range d.routes {
		if r.buffer != nil {
			close(r.buffer)
		}
	}
	d.mu.Unlock()

	d.workers.Wait()
	return d.reg.Unregister()
}

// call runs h, turning a panic into an error.
func call(h HandlerFunc, e Event) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, e.Command, p)
		}
	}()
	return h(e)
}

func (d *Dispatcher) withMetrics(r *route, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := call(h, e)
		ctx := context.Background()
		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, r.attrs)
		d.processed.Add(ctx, 1, r.attrs)
		if err != nil {
			d.failed.Add(ctx, 1, r.attrs)
		}
		return result, err
	}
}

func (d *Dispatcher) startWorker(r *route, h HandlerFunc) {
	d.workers.Add(1)
	go func(buffer <-chan Event) {
		defer d.workers.Done()
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.logger.Error("buffered event failed", "command", r.command, "error", err)
			}
		}
	}(r.buffer)
}

func (d *Dispatcher) enqueue(r *route) HandlerFunc {
	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		// a replaced route's buffer is already closed
		if d.closed || d.routes[r.command] != r {
			return nil, ErrClosed
		}
		select {
		case r.buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, r.attrs)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, r.command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
