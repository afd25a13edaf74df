package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the request orchestrator.
type Metrics struct {
	RequestsInitiated prometheus.Counter
	Transitions       *prometheus.CounterVec
	StaleRejections   prometheus.Counter
	RequestsSwept     prometheus.Counter
}

// New registers and returns orchestrator metrics collectors.
func New() *Metrics {
	return &Metrics{
		RequestsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_requests_initiated_total",
			Help: "Total number of credit score requests initiated",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorepass_request_transitions_total",
			Help: "Total number of request status transitions by target status",
		}, []string{"status"}),
		StaleRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_request_stale_rejections_total",
			Help: "Total number of operations rejected on a stale status precondition",
		}),
		RequestsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_requests_swept_total",
			Help: "Total number of stuck requests failed by the expiry sweeper",
		}),
	}
}

func (m *Metrics) IncrementInitiated() { m.RequestsInitiated.Inc() }

func (m *Metrics) IncrementTransition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementStale() { m.StaleRejections.Inc() }

func (m *Metrics) IncrementSwept() { m.RequestsSwept.Inc() }
