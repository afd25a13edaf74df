// Package service implements the identity registry. The request orchestrator
// consumes it as a capability oracle: IsVerified gates subjects, IsAuthorized
// gates requesters.
package service

import (
	"context"
	"errors"
	"log/slog"

	"scorepass/internal/identity/metrics"
	"scorepass/internal/identity/models"
	"scorepass/internal/notify"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/requestcontext"
)

// Store defines the persistence interface for identities.
// Error Contract:
// - FindByID/FindByPrincipal return sentinel.ErrNotFound when absent
// - Save returns sentinel.ErrConflict when the principal is already registered
// - DeleteAuthorization returns sentinel.ErrNotFound when no grant exists
type Store interface {
	Save(ctx context.Context, identity *models.Identity) error
	FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	FindByPrincipal(ctx context.Context, principal id.Principal) (*models.Identity, error)
	Update(ctx context.Context, identity *models.Identity) error
	SaveAuthorization(ctx context.Context, grant *models.Authorization) error
	DeleteAuthorization(ctx context.Context, identityID id.IdentityID, requester id.Principal) error
	IsAuthorized(ctx context.Context, identityID id.IdentityID, requester id.Principal) (bool, error)
	ListAuthorizations(ctx context.Context, identityID id.IdentityID) ([]*models.Authorization, error)
}

// Option configures the Service.
type Option func(*Service)

// Service enforces the identity lifecycle: register once, verify once, grant
// and revoke requester authorizations.
type Service struct {
	store    Store
	notifier *notify.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs an identity service over the given store.
func NewService(store Store, notifier *notify.Publisher, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Register creates a new identity for a principal. A principal registers at
// most once.
func (s *Service) Register(ctx context.Context, principal id.Principal, externalID string) (*models.Identity, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "principal is required")
	}
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "external ID is required")
	}

	now := requestcontext.Now(ctx)
	identity := &models.Identity{
		ID:         id.NewIdentityID(),
		Principal:  principal,
		ExternalID: externalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Save(ctx, identity); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "principal already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
	}

	s.emit(ctx, notify.OpIdentityRegistered, identity.ID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	s.logger.InfoContext(ctx, "identity registered",
		"identity_id", identity.ID,
		"principal", principal,
	)
	return identity, nil
}

// Verify marks an identity verified. Admin-only; the transport layer gates the
// call. Verifying twice is a conflict, not a no-op.
func (s *Service) Verify(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}

	identity, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity")
	}
	if identity.Verified {
		return nil, dErrors.New(dErrors.CodeConflict, "identity already verified")
	}

	now := requestcontext.Now(ctx)
	identity.Verified = true
	identity.VerifiedAt = &now
	identity.UpdatedAt = now
	if err := s.store.Update(ctx, identity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
	}

	s.emit(ctx, notify.OpIdentityVerified, identity.ID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementVerified()
	}
	s.logger.InfoContext(ctx, "identity verified", "identity_id", identity.ID)
	return identity, nil
}

// Authorize grants a requester the right to initiate score requests for the
// identity. Re-granting refreshes the grant timestamp.
func (s *Service) Authorize(ctx context.Context, identityID id.IdentityID, requester id.Principal) error {
	if identityID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}
	if requester.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "requester is required")
	}

	grant := &models.Authorization{
		IdentityID: identityID,
		Requester:  requester,
		GrantedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.SaveAuthorization(ctx, grant); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save authorization")
	}

	s.emit(ctx, notify.OpIdentityAuthorized, identityID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementGrants()
	}
	return nil
}

// Revoke removes a requester authorization.
func (s *Service) Revoke(ctx context.Context, identityID id.IdentityID, requester id.Principal) error {
	if identityID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}
	if requester.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "requester is required")
	}

	if err := s.store.DeleteAuthorization(ctx, identityID, requester); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "authorization not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete authorization")
	}

	s.emit(ctx, notify.OpIdentityRevoked, identityID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementRevokes()
	}
	return nil
}

// IsAuthorized reports whether the requester may initiate score requests for
// the identity.
func (s *Service) IsAuthorized(ctx context.Context, identityID id.IdentityID, requester id.Principal) (bool, error) {
	authorized, err := s.store.IsAuthorized(ctx, identityID, requester)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check authorization")
	}
	if s.metrics != nil {
		s.metrics.ObserveAuthorizationCheck(authorized)
	}
	return authorized, nil
}

// IsVerified reports whether the identity has been verified.
func (s *Service) IsVerified(ctx context.Context, identityID id.IdentityID) (bool, error) {
	identity, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity")
	}
	return identity.Verified, nil
}

// Get returns one identity by ID.
func (s *Service) Get(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	identity, err := s.store.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity")
	}
	return identity, nil
}

// GetByPrincipal returns one identity by its principal.
func (s *Service) GetByPrincipal(ctx context.Context, principal id.Principal) (*models.Identity, error) {
	identity, err := s.store.FindByPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity")
	}
	return identity, nil
}

// ListAuthorizations returns the active grants for one identity.
func (s *Service) ListAuthorizations(ctx context.Context, identityID id.IdentityID) ([]*models.Authorization, error) {
	grants, err := s.store.ListAuthorizations(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list authorizations")
	}
	return grants, nil
}

func (s *Service) emit(ctx context.Context, operation, entityID, outcome string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, operation, entityID, outcome)
}
