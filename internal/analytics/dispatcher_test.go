package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gift-concierge/internal/domain"
)

type fakeSink struct {
	mu          sync.Mutex
	clicks      []domain.ClickEvent
	conversions []domain.ConversionEvent
	err         error
	block       chan struct{}
}

func (f *fakeSink) RecordClick(_ context.Context, ev domain.ClickEvent) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, ev)
	return f.err
}

func (f *fakeSink) RecordConversion(_ context.Context, ev domain.ConversionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversions = append(f.conversions, ev)
	return f.err
}

type hookRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (h *hookRecorder) record(sink, event string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, sink+"/"+event)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err)

	_, err = NewDispatcher([]NamedSink{{Name: "x"}})
	require.ErrorContains(t, err, "nil")

	_, err = NewDispatcher([]NamedSink{{Sink: &fakeSink{}}})
	require.ErrorContains(t, err, "name")
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	d, err := NewDispatcher([]NamedSink{{Name: "a", Sink: a}, {Name: "b", Sink: b}}, WithLogger(quietLogger()))
	require.NoError(t, err)

	click := domain.ClickEvent{SessionID: "s", Sku: "A1", Name: "Box", Position: 1}
	d.TrackClick(click)
	d.TrackConversion(domain.ConversionEvent{SessionID: "s"})
	require.NoError(t, d.Close(context.Background()))

	for _, s := range []*fakeSink{a, b} {
		require.Equal(t, []domain.ClickEvent{click}, s.clicks)
		require.Equal(t, []domain.ConversionEvent{{SessionID: "s"}}, s.conversions)
	}
}

func TestDispatcher_SinkFailuresAreSwallowed(t *testing.T) {
	failing := &fakeSink{err: errors.New("table missing")}
	healthy := &fakeSink{}
	hook := &hookRecorder{}
	d, err := NewDispatcher(
		[]NamedSink{{Name: "dynamodb", Sink: failing}, {Name: "backend", Sink: healthy}},
		WithLogger(quietLogger()),
		WithErrorHook(hook.record),
	)
	require.NoError(t, err)

	d.TrackClick(domain.ClickEvent{SessionID: "s", Sku: "A1", Position: 1})
	d.TrackConversion(domain.ConversionEvent{SessionID: "s"})
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, healthy.clicks, 1)
	require.Len(t, healthy.conversions, 1)
	require.Equal(t, []string{"dynamodb/click", "dynamodb/conversion"}, hook.calls)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	hook := &hookRecorder{}
	d, err := NewDispatcher([]NamedSink{{Name: "slow", Sink: sink}},
		WithLogger(quietLogger()), WithQueueSize(1), WithErrorHook(hook.record))
	require.NoError(t, err)

	// First event is picked up by the worker and blocks; the second fills the
	// queue; the rest are dropped.
	d.TrackClick(domain.ClickEvent{SessionID: "s", Sku: "1"})
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	d.TrackClick(domain.ClickEvent{SessionID: "s", Sku: "2"})
	d.TrackClick(domain.ClickEvent{SessionID: "s", Sku: "3"})
	d.TrackClick(domain.ClickEvent{SessionID: "s", Sku: "4"})

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
	require.Len(t, sink.clicks, 2)
	require.Equal(t, []string{"/click", "/click"}, hook.calls)
}

func TestDispatcher_EventsAfterCloseAreDropped(t *testing.T) {
	sink := &fakeSink{}
	hook := &hookRecorder{}
	d, err := NewDispatcher([]NamedSink{{Name: "s", Sink: sink}}, WithLogger(quietLogger()), WithErrorHook(hook.record))
	require.NoError(t, err)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.TrackConversion(domain.ConversionEvent{SessionID: "s"})
	require.Empty(t, sink.conversions)
	require.Equal(t, []string{"/conversion"}, hook.calls)
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	d, err := NewDispatcher([]NamedSink{{Name: "slow", Sink: sink}}, WithLogger(quietLogger()))
	require.NoError(t, err)
	d.TrackClick(domain.ClickEvent{SessionID: "s", Sku: "1"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	close(sink.block)
}
