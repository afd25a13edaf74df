package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for attestation operations.
type Metrics struct {
	RequestsSubmitted     prometheus.Counter
	AttestationsSubmitted *prometheus.CounterVec
	Verifications         *prometheus.CounterVec
	AttestationAge        prometheus.Histogram
}

// New registers and returns attestation metrics collectors.
func New() *Metrics {
	return &Metrics{
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_attestation_requests_total",
			Help: "Total number of attestation requests submitted",
		}),
		AttestationsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorepass_attestations_submitted_total",
			Help: "Total number of attestations submitted, labeled by outcome",
		}, []string{"outcome"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorepass_attestation_verifications_total",
			Help: "Total number of verification decisions, labeled by result",
		}, []string{"result"}),
		AttestationAge: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorepass_attestation_age_seconds",
			Help:    "Age of attestations at verification time in seconds",
			Buckets: []float64{60, 600, 3600, 7200, 21600, 43200, 86400, 172800},
		}),
	}
}

func (m *Metrics) IncrementRequests() { m.RequestsSubmitted.Inc() }

func (m *Metrics) IncrementSubmitted(outcome string) {
	m.AttestationsSubmitted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementVerification(result string) {
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAttestationAge(seconds float64) {
	m.AttestationAge.Observe(seconds)
}
