package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Transitions counts chapter exits by outgoing chapter id.
	Transitions *prometheus.CounterVec
	// Completions counts story completions.
	Completions prometheus.Counter
	// ChoiceErrors counts rejected player inputs by reason.
	ChoiceErrors *prometheus.CounterVec
	// ValidationDefects gauges the defect count of the last validation run.
	ValidationDefects prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_chapter_transitions_total",
				Help: "Total chapter transitions by outgoing chapter",
			},
			[]string{"chapter_id"},
		),
		Completions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "story_completions_total",
				Help: "Total story completions",
			},
		),
		ChoiceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_choice_errors_total",
				Help: "Rejected player inputs by reason",
			},
			[]string{"reason"},
		),
		ValidationDefects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "story_validation_defects",
				Help: "Defect count of the last validation run",
			},
		),
	}
	m.registry.MustRegister(m.Transitions, m.Completions, m.ChoiceErrors, m.ValidationDefects)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
