// Package metrics exposes prometheus collectors for action execution and
// render tracking.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	providerErrors *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	renderOutcomes *prometheus.CounterVec
	pollAttempts   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luzdodia",
			Name:      "actions_total",
			Help:      "Executed pipeline actions by outcome.",
		}, []string{"action", "provider", "mode", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "luzdodia",
			Name:      "action_duration_seconds",
			Help:      "Duration of pipeline actions.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"action", "mode"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luzdodia",
			Name:      "provider_errors_total",
			Help:      "Provider call failures by normalized kind.",
		}, []string{"provider", "kind"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luzdodia",
			Name:      "action_fallbacks_total",
			Help:      "Non-critical actions answered by their deterministic fallback.",
		}, []string{"action"}),
		renderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luzdodia",
			Name:      "render_outcomes_total",
			Help:      "Terminal render job outcomes.",
		}, []string{"outcome"}),
		pollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "luzdodia",
			Name:      "render_poll_attempts_total",
			Help:      "Render status polls issued.",
		}),
	}

	reg.MustRegister(m.actions, m.actionDuration, m.providerErrors, m.fallbacks, m.renderOutcomes, m.pollAttempts)
	return m
}

func (m *Metrics) ObserveAction(action, provider, mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, provider, mode, outcome).Inc()
	m.actionDuration.WithLabelValues(action, mode).Observe(seconds)
}

func (m *Metrics) ProviderError(provider, kind string) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) Fallback(action string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(action).Inc()
}

func (m *Metrics) RenderOutcome(outcome string) {
	if m == nil {
		return
	}
	m.renderOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PollAttempt() {
	if m == nil {
		return
	}
	m.pollAttempts.Inc()
}
