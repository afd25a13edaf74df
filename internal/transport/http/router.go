// Package httptransport assembles the public HTTP surface. It wires the
// per-context handlers behind the shared middleware stack and keeps all
// routing decisions in one place.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attestationhandler "scorepass/internal/attestation/handler"
	credentialhandler "scorepass/internal/credential/handler"
	identityhandler "scorepass/internal/identity/handler"
	"scorepass/internal/platform/health"
	"scorepass/internal/platform/middleware"
	requesthandler "scorepass/internal/request/handler"
	scoringhandler "scorepass/internal/scoring/handler"
)

// Handlers collects the per-context HTTP handlers the router mounts.
type Handlers struct {
	Identities   *identityhandler.Handler
	Attestations *attestationhandler.Handler
	Scoring      *scoringhandler.Handler
	Requests     *requesthandler.Handler
	Credentials  *credentialhandler.Handler
	Health       *health.Handler
}

// NewRouter builds the full route tree. Unauthenticated: health and metrics.
// Bearer-authenticated: the domain API. Admin-token-guarded: the
// administrative capability (verification, validator whitelist, attestation
// window, model parameters, credential revocation).
func NewRouter(h Handlers, validator middleware.PrincipalValidator, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	h.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(validator, logger))

		h.Identities.Register(r)
		h.Attestations.Register(r)
		h.Requests.Register(r)
		h.Credentials.Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAdminToken(adminToken, logger))

		h.Identities.RegisterAdmin(r)
		h.Attestations.RegisterAdmin(r)
		h.Scoring.RegisterAdmin(r)
		h.Credentials.RegisterAdmin(r)
	})

	return r
}
