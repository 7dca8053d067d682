package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"gift-concierge/internal/wizard"
)

// gatheredValue returns the counter or gauge value of the series whose labels
// match want.
func gatheredValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if !match {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, want)
	return 0
}

func TestObserveEvent_Rounds(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.ObserveEvent(wizard.Event{Kind: wizard.EventRoundStarted, Round: wizard.RoundQuery})
	m.ObserveEvent(wizard.Event{Kind: wizard.EventRoundCompleted, Round: wizard.RoundQuery, Latency: 300 * time.Millisecond})
	m.ObserveEvent(wizard.Event{Kind: wizard.EventRoundFailed, Round: wizard.RoundRefinement, Latency: time.Second})
	m.ObserveEvent(wizard.Event{Kind: wizard.EventRoundDiscarded, Round: wizard.RoundFreeText})

	require.Equal(t, 1.0, gatheredValue(t, reg, "test_rounds_total", map[string]string{"round": "query", "outcome": "completed"}))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_rounds_total", map[string]string{"round": "refinement", "outcome": "failed"}))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_rounds_total", map[string]string{"round": "free_text", "outcome": "discarded"}))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_round_latency_ms", map[string]string{"round": "query"}))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_dialog_events_total", map[string]string{"event": "round_started"}))
}

func TestObserveEvent_FeedbackAndRefinement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.ObserveEvent(wizard.Event{Kind: wizard.EventFeedbackRecorded, Feedback: wizard.FeedbackDown})
	m.ObserveEvent(wizard.Event{Kind: wizard.EventFeedbackRecorded, Feedback: wizard.FeedbackDown})
	m.ObserveEvent(wizard.Event{Kind: wizard.EventFeedbackRecorded, Feedback: wizard.FeedbackUp})
	m.ObserveEvent(wizard.Event{Kind: wizard.EventRefinementOffered})

	require.Equal(t, 2.0, gatheredValue(t, reg, "test_feedback_total", map[string]string{"value": "down"}))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_feedback_total", map[string]string{"value": "up"}))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_refinement_offered_total", nil))
}

func TestAnalyticsError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	m.AnalyticsError("dynamodb", "click", errors.New("boom"))
	require.Equal(t, 1.0, gatheredValue(t, reg, "test_analytics_errors_total", map[string]string{"sink": "dynamodb", "event": "click"}))
}

func TestRegisterActiveDialogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	n := 3
	m.RegisterActiveDialogs("test", func() int { return n })
	require.Equal(t, 3.0, gatheredValue(t, reg, "test_active_dialogs", nil))
	n = 5
	require.Equal(t, 5.0, gatheredValue(t, reg, "test_active_dialogs", nil))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := NewMetrics(nil, "test")
	m.ObserveEvent(wizard.Event{Kind: wizard.EventNavigatedBack})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `test_dialog_events_total{event="navigated_back"} 1`)
}
