package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gift-concierge/internal/domain"
)

const (
	eventClick      = "click"
	eventConversion = "conversion"
)

// Sink persists analytics events.
type Sink interface {
	RecordClick(ctx context.Context, ev domain.ClickEvent) error
	RecordConversion(ctx context.Context, ev domain.ConversionEvent) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

type job struct {
	kind       string
	click      domain.ClickEvent
	conversion domain.ConversionEvent
}

// Dispatcher delivers analytics events to every sink from a background
// worker. Enqueueing never blocks; failures are logged and dropped.
type Dispatcher struct {
	sinks   []NamedSink
	timeout time.Duration
	logger  *slog.Logger
	onError func(sink, event string, err error)

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

// WithTimeout bounds each sink call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithErrorHook is called for every failed or dropped delivery.
func WithErrorHook(fn func(sink, event string, err error)) Option {
	return func(d *Dispatcher) { d.onError = fn }
}

func NewDispatcher(sinks []NamedSink, opts ...Option) (*Dispatcher, error) {
	if len(sinks) == 0 {
		return nil, errors.New("analytics: at least one sink is required")
	}
	for _, s := range sinks {
		if s.Sink == nil {
			return nil, errors.New("analytics: sink must not be nil")
		}
		if s.Name == "" {
			return nil, errors.New("analytics: sink name must not be empty")
		}
	}
	d := &Dispatcher{
		sinks:   append([]NamedSink(nil), sinks...),
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		queue:   make(chan job, 256),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

func (d *Dispatcher) TrackClick(ev domain.ClickEvent) {
	d.enqueue(job{kind: eventClick, click: ev})
}

func (d *Dispatcher) TrackConversion(ev domain.ConversionEvent) {
	d.enqueue(job{kind: eventConversion, conversion: ev})
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.fail("", j.kind, errors.New("analytics: dispatcher closed"))
		return
	}
	select {
	case d.queue <- j:
	default:
		d.fail("", j.kind, errors.New("analytics: queue full"))
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, j)
		}
	}
}

func (d *Dispatcher) deliver(s NamedSink, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	switch j.kind {
	case eventClick:
		err = s.Sink.RecordClick(ctx, j.click)
	case eventConversion:
		err = s.Sink.RecordConversion(ctx, j.conversion)
	}
	if err != nil {
		d.fail(s.Name, j.kind, err)
	}
}

func (d *Dispatcher) fail(sink, event string, err error) {
	d.logger.Warn("analytics: event not recorded", "sink", sink, "event", event, "err", err)
	if d.onError != nil {
		d.onError(sink, event, err)
	}
}
