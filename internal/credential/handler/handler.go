package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scorepass/internal/credential/models"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/httputil"
)

// Service defines the credential operations the handler exposes. Issuance is
// not among them: only the orchestrator mints credentials.
type Service interface {
	Revoke(ctx context.Context, credentialID id.CredentialID) error
	Renew(ctx context.Context, credentialID id.CredentialID, newCommitment id.Commitment, newValidUntil time.Time, newMetadataPointer string) (*models.Credential, error)
	Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	ListBySubject(ctx context.Context, subject id.IdentityID) ([]*models.Credential, error)
}

// Handler handles credential endpoints.
type Handler struct {
	credentials Service
	logger      *slog.Logger
}

// New creates a new credential Handler.
func New(credentials Service, logger *slog.Logger) *Handler {
	return &Handler{credentials: credentials, logger: logger}
}

// Register registers the credential routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/credentials/{credentialID}", h.handleGet)
	r.Get("/identities/{identityID}/credentials", h.handleListBySubject)
}

// RegisterAdmin registers the admin-only credential routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/credentials/{credentialID}/revoke", h.handleRevoke)
	r.Post("/credentials/{credentialID}/renew", h.handleRenew)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credential, err := h.credentials.Get(r.Context(), credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credential)
}

func (h *Handler) handleListBySubject(w http.ResponseWriter, r *http.Request) {
	subject, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credentials, err := h.credentials.ListBySubject(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"credentials": credentials})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.credentials.Revoke(ctx, credentialID); err != nil {
		h.logger.WarnContext(ctx, "credential revocation rejected",
			"credential_id", credentialID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.RenewPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	commitment, err := id.ParseCommitment(req.ScoreCommitment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	credential, err := h.credentials.Renew(ctx, credentialID, commitment, req.ValidUntil, req.MetadataPointer)
	if err != nil {
		h.logger.WarnContext(ctx, "credential renewal rejected",
			"credential_id", credentialID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credential)
}
