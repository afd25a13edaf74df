package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential operations.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsRevoked prometheus.Counter
	CredentialsRenewed prometheus.Counter
	ActiveCredentials  prometheus.Gauge
}

// New registers and returns credential metrics collectors.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		CredentialsRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_credentials_renewed_total",
			Help: "Total number of credentials renewed",
		}),
		ActiveCredentials: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scorepass_active_credentials",
			Help: "Current number of active credentials",
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.CredentialsIssued.Inc()
	m.ActiveCredentials.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.CredentialsRevoked.Inc()
	m.ActiveCredentials.Dec()
}

func (m *Metrics) IncrementRenewed() { m.CredentialsRenewed.Inc() }
