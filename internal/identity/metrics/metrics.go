package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for identity registry operations.
type Metrics struct {
	IdentitiesRegistered prometheus.Counter
	IdentitiesVerified   prometheus.Counter
	AuthorizationGrants  prometheus.Counter
	AuthorizationRevokes prometheus.Counter
	AuthorizationChecks  *prometheus.CounterVec
}

// New registers and returns identity metrics collectors.
func New() *Metrics {
	return &Metrics{
		IdentitiesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_identities_registered_total",
			Help: "Total number of identities registered",
		}),
		IdentitiesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_identities_verified_total",
			Help: "Total number of identities verified by an administrator",
		}),
		AuthorizationGrants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_authorization_grants_total",
			Help: "Total number of requester authorizations granted",
		}),
		AuthorizationRevokes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorepass_authorization_revokes_total",
			Help: "Total number of requester authorizations revoked",
		}),
		AuthorizationChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorepass_authorization_checks_total",
			Help: "Total number of authorization checks, labeled by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementRegistered() { m.IdentitiesRegistered.Inc() }
func (m *Metrics) IncrementVerified()   { m.IdentitiesVerified.Inc() }
func (m *Metrics) IncrementGrants()     { m.AuthorizationGrants.Inc() }
func (m *Metrics) IncrementRevokes()    { m.AuthorizationRevokes.Inc() }

func (m *Metrics) ObserveAuthorizationCheck(authorized bool) {
	result := "denied"
	if authorized {
		result = "allowed"
	}
	m.AuthorizationChecks.WithLabelValues(result).Inc()
}
