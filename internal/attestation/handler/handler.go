package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scorepass/internal/attestation/models"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/httputil"
	"scorepass/pkg/requestcontext"
)

// Service defines the attestation operations the handler exposes.
type Service interface {
	SubmitRequest(ctx context.Context, commitment id.Commitment) (id.RequestID, error)
	SubmitAttestation(ctx context.Context, requestID id.RequestID, commitment id.Commitment, sig []byte, signedAt time.Time) error
	Verify(ctx context.Context, requestID id.RequestID) (bool, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	SetValidator(ctx context.Context, principal id.Principal, publicKey []byte, enabled bool) error
	ListValidators(ctx context.Context) ([]*models.Validator, error)
	SetWindow(ctx context.Context, minDelay, maxAge time.Duration) error
}

// Handler handles attestation endpoints.
type Handler struct {
	attestation Service
	logger      *slog.Logger
}

// New creates a new attestation Handler.
func New(attestation Service, logger *slog.Logger) *Handler {
	return &Handler{attestation: attestation, logger: logger}
}

// Register registers the attestation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/attestations/requests", h.handleSubmitRequest)
	r.Get("/attestations/requests/{requestID}", h.handleGet)
	r.Post("/attestations", h.handleSubmitAttestation)
	r.Post("/attestations/requests/{requestID}/verify", h.handleVerify)
}

// RegisterAdmin registers the admin-only attestation routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/attestations/validators", h.handleSetValidator)
	r.Get("/attestations/validators", h.handleListValidators)
	r.Put("/attestations/window", h.handleSetWindow)
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	commitment, err := id.ParseCommitment(req.Commitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requestID, err := h.attestation.SubmitRequest(ctx, commitment)
	if err != nil {
		h.logger.WarnContext(ctx, "attestation request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"request_id": requestID.String()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	request, err := h.attestation.Get(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitAttestationPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	requestID, err := id.ParseRequestID(req.RequestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	commitment, err := id.ParseCommitment(req.Commitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "signature must be hex encoded"))
		return
	}

	if err := h.attestation.SubmitAttestation(ctx, requestID, commitment, sig, req.SignedAt); err != nil {
		h.logger.WarnContext(ctx, "attestation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"attestation_request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID.String()})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verified, err := h.attestation.Verify(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

func (h *Handler) handleSetValidator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SetValidatorPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	principal, err := id.ParsePrincipal(req.Principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	publicKey, err := hex.DecodeString(req.PublicKey)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "public key must be hex encoded"))
		return
	}

	if err := h.attestation.SetValidator(ctx, principal, publicKey, req.Enabled); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListValidators(w http.ResponseWriter, r *http.Request) {
	validators, err := h.attestation.ListValidators(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"validators": validators})
}

func (h *Handler) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SetWindowPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	minDelay, err := time.ParseDuration(req.MinDelay)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid min_delay duration"))
		return
	}
	maxAge, err := time.ParseDuration(req.MaxAge)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid max_age duration"))
		return
	}

	if err := h.attestation.SetWindow(ctx, minDelay, maxAge); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
