package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gift-concierge/internal/wizard"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	DialogEvents      *prometheus.CounterVec
	Rounds            *prometheus.CounterVec
	RoundLatency      *prometheus.HistogramVec
	Feedback          *prometheus.CounterVec
	RefinementOffered prometheus.Counter
	AnalyticsErrors   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics registers the instruments on reg. A nil reg uses a fresh
// registry so tests and multiple instances never collide.
func NewMetrics(reg *prometheus.Registry, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		DialogEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_events_total",
			Help:      "Dialog state changes by event kind.",
		}, []string{"event"}),
		Rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Recommendation rounds by kind and outcome.",
		}, []string{"round", "outcome"}),
		RoundLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_latency_ms",
			Help:      "Backend round trip latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}, []string{"round"}),
		Feedback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Product feedback by value.",
		}, []string{"value"}),
		RefinementOffered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinement_offered_total",
			Help:      "Batches fully rejected by the shopper.",
		}),
		AnalyticsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_errors_total",
			Help:      "Analytics delivery failures by sink and event.",
		}, []string{"sink", "event"}),
		registry: reg,
	}
}

// RegisterActiveDialogs exposes the number of live dialogs reported by fn.
func (m *Metrics) RegisterActiveDialogs(namespace string, fn func() int) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_dialogs",
		Help:      "Number of dialogs currently hosted.",
	}, func() float64 { return float64(fn()) })
}

// ObserveEvent is a wizard observer.
func (m *Metrics) ObserveEvent(ev wizard.Event) {
	m.DialogEvents.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case wizard.EventRoundCompleted:
		m.observeRound(ev, "completed")
	case wizard.EventRoundFailed:
		m.observeRound(ev, "failed")
	case wizard.EventRoundDiscarded:
		m.observeRound(ev, "discarded")
	case wizard.EventFeedbackRecorded:
		m.Feedback.WithLabelValues(string(ev.Feedback)).Inc()
	case wizard.EventRefinementOffered:
		m.RefinementOffered.Inc()
	}
}

func (m *Metrics) observeRound(ev wizard.Event, outcome string) {
	m.Rounds.WithLabelValues(string(ev.Round), outcome).Inc()
	if ev.Latency > 0 {
		m.ObserveRoundLatency(ev.Round, ev.Latency)
	}
}

func (m *Metrics) ObserveRoundLatency(round wizard.RoundKind, d time.Duration) {
	m.RoundLatency.WithLabelValues(string(round)).Observe(float64(d.Milliseconds()))
}

// AnalyticsError matches the analytics dispatcher's error hook.
func (m *Metrics) AnalyticsError(sink, event string, _ error) {
	m.AnalyticsErrors.WithLabelValues(sink, event).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
