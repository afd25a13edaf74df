package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for scoring operations.
type Metrics struct {
	Computations      *prometheus.CounterVec
	ComputeDuration   prometheus.Histogram
	ParameterUpdates  prometheus.Counter
	ActivationChanges prometheus.Counter
}

// New registers and returns scoring metrics collectors.
func New() *Metrics {
	return &Metrics{
		Computations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorepass_scoring_computations_total",
			Help: "Total number of score computations, labeled by outcome",
		}, []string{"outcome"}),
		ComputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorepass_scoring_compute_duration_seconds",
			Help:    "Duration of score computations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ParameterUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_scoring_parameter_updates_total",
			Help: "Total number of model parameter updates",
		}),
		ActivationChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_scoring_activation_changes_total",
			Help: "Total number of model activation toggles",
		}),
	}
}

func (m *Metrics) IncrementComputations(outcome string) {
	m.Computations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveComputeDuration(seconds float64) {
	m.ComputeDuration.Observe(seconds)
}

func (m *Metrics) IncrementParameterUpdates()  { m.ParameterUpdates.Inc() }
func (m *Metrics) IncrementActivationChanges() { m.ActivationChanges.Inc() }
