package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scorepass/internal/identity/models"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/httputil"
	"scorepass/pkg/requestcontext"
)

// Service defines the identity operations the handler exposes.
type Service interface {
	Register(ctx context.Context, principal id.Principal, externalID string) (*models.Identity, error)
	Verify(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	Authorize(ctx context.Context, identityID id.IdentityID, requester id.Principal) error
	Revoke(ctx context.Context, identityID id.IdentityID, requester id.Principal) error
	Get(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	ListAuthorizations(ctx context.Context, identityID id.IdentityID) ([]*models.Authorization, error)
}

// Handler handles identity registry endpoints.
type Handler struct {
	identity Service
	logger   *slog.Logger
}

// New creates a new identity Handler.
func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

// Register registers the identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identities", h.handleRegister)
	r.Get("/identities/{identityID}", h.handleGet)
	r.Post("/identities/{identityID}/authorizations", h.handleAuthorize)
	r.Delete("/identities/{identityID}/authorizations", h.handleRevoke)
	r.Get("/identities/{identityID}/authorizations", h.handleListAuthorizations)
}

// RegisterAdmin registers the admin-only identity routes. The caller wraps
// these with the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/identities/{identityID}/verify", h.handleVerify)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	principal, err := id.ParsePrincipal(req.Principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.identity.Register(ctx, principal, req.ExternalID)
	if err != nil {
		h.logger.WarnContext(ctx, "identity registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, identity)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := h.identity.Get(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := h.identity.Verify(ctx, identityID)
	if err != nil {
		h.logger.WarnContext(ctx, "identity verification rejected",
			"request_id", requestcontext.RequestID(ctx),
			"identity_id", identityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	requester, err := id.ParsePrincipal(req.Requester)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.identity.Authorize(ctx, identityID, requester); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req models.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	requester, err := id.ParsePrincipal(req.Requester)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.identity.Revoke(ctx, identityID, requester); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListAuthorizations(w http.ResponseWriter, r *http.Request) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	grants, err := h.identity.ListAuthorizations(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"authorizations": grants})
}
