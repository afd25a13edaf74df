package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scorepass/internal/scoring/models"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/httputil"
)

// Service defines the admin-facing scoring operations. Compute itself is not
// exposed over HTTP directly; the orchestrator drives it.
type Service interface {
	SetParameters(ctx context.Context, baseScore, riskMultiplier, creditCeiling uint64) error
	SetActive(ctx context.Context, active bool) error
	Parameters(ctx context.Context) (*models.ParametersInfo, error)
}

// Handler handles scoring administration endpoints.
type Handler struct {
	scoring Service
	logger  *slog.Logger
}

// New creates a new scoring Handler.
func New(scoring Service, logger *slog.Logger) *Handler {
	return &Handler{scoring: scoring, logger: logger}
}

// RegisterAdmin registers the admin-only scoring routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/scoring/parameters", h.handleGetParameters)
	r.Put("/scoring/parameters", h.handleSetParameters)
	r.Put("/scoring/active", h.handleSetActive)
}

func (h *Handler) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	info, err := h.scoring.Parameters(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleSetParameters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SetParametersPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.scoring.SetParameters(ctx, req.BaseScore, req.RiskMultiplier, req.CreditCeiling); err != nil {
		h.logger.WarnContext(ctx, "model parameter update rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SetActivePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.scoring.SetActive(ctx, req.Active); err != nil {
		h.logger.WarnContext(ctx, "model activation change rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
