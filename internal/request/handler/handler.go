package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scorepass/internal/request/models"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/httputil"
)

// Service defines the orchestrator operations the handler exposes.
type Service interface {
	Initiate(ctx context.Context, subject id.IdentityID, dataCommitment id.Commitment) (*models.CreditScoreRequest, error)
	OnAttestationProcessed(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error)
	BeginScoring(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error)
	Score(ctx context.Context, requestID id.RequestID, blob []byte) (*models.CreditScoreRequest, error)
	OnScoringResult(ctx context.Context, requestID id.RequestID, encryptedScore []byte) (*models.CreditScoreRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error)
}

// Handler handles credit score request endpoints.
type Handler struct {
	requests Service
	logger   *slog.Logger
}

// New creates a new request Handler.
func New(requests Service, logger *slog.Logger) *Handler {
	return &Handler{requests: requests, logger: logger}
}

// Register registers the request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/requests", h.handleInitiate)
	r.Get("/requests/{requestID}", h.handleGet)
	r.Post("/requests/{requestID}/attestation-processed", h.handleAttestationProcessed)
	r.Post("/requests/{requestID}/begin-scoring", h.handleBeginScoring)
	r.Post("/requests/{requestID}/score", h.handleScore)
	r.Post("/requests/{requestID}/scoring-result", h.handleScoringResult)
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.InitiatePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	subject, err := id.ParseIdentityID(req.SubjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	commitment, err := id.ParseCommitment(req.DataCommitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.requests.Initiate(ctx, subject, commitment)
	if err != nil {
		h.logger.WarnContext(ctx, "request initiation rejected",
			"subject", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, request)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	request, err := h.requests.Get(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleAttestationProcessed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.requests.OnAttestationProcessed(ctx, requestID)
	if err != nil {
		h.logger.WarnContext(ctx, "attestation processing rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleBeginScoring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	request, err := h.requests.BeginScoring(ctx, requestID)
	if err != nil {
		h.logger.WarnContext(ctx, "scoring claim rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.ScorePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	request, err := h.requests.Score(ctx, requestID, req.Data)
	if err != nil {
		h.logger.WarnContext(ctx, "scoring rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleScoringResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.ScoringResultPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	request, err := h.requests.OnScoringResult(ctx, requestID, req.EncryptedScore)
	if err != nil {
		h.logger.WarnContext(ctx, "scoring result rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}
