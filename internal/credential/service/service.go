// Package service implements the financial passport issuer. Credentials are
// soulbound by construction: no operation here or anywhere else can move one
// to another subject, and revocation leaves the record in place.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scorepass/internal/credential/metrics"
	"scorepass/internal/credential/models"
	"scorepass/internal/notify"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/requestcontext"
)

// Store defines the persistence interface for credentials.
// Error Contract:
// - FindByID/FindActiveByCommitment return sentinel.ErrNotFound when absent
// - Save/Update return sentinel.ErrConflict when the commitment is already
//   bound to another active credential
// - Update returns sentinel.ErrInvalidState on an attempted subject change
type Store interface {
	Save(ctx context.Context, credential *models.Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	Update(ctx context.Context, credential *models.Credential) error
	FindActiveByCommitment(ctx context.Context, commitment id.Commitment) (*models.Credential, error)
	ListBySubject(ctx context.Context, subject id.IdentityID) ([]*models.Credential, error)
}

// Option configures the Service.
type Option func(*Service)

// Service mints, revokes, and renews credentials.
type Service struct {
	store    Store
	notifier *notify.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs a credential service over the given store.
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

// Issue mints one credential. A score commitment backs at most one live
// credential at a time; a commitment already bound is a capacity rejection.
func (s *Service) Issue(ctx context.Context, subject id.IdentityID, scoreCommitment id.Commitment, validUntil time.Time, metadataPointer string) (*models.Credential, error) {
	if subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if scoreCommitment.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "score commitment cannot be zero")
	}
	now := requestcontext.Now(ctx)
	if !validUntil.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "valid-until must be in the future")
	}

	credential := &models.Credential{
		ID:              id.NewCredentialID(),
		Subject:         subject,
		ScoreCommitment: scoreCommitment,
		IssuedAt:        now,
		ValidUntil:      validUntil,
		MetadataPointer: metadataPointer,
		Active:          true,
	}
	if err := s.store.Save(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeCapacity, "score commitment already bound to an active credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential")
	}

	s.emit(ctx, notify.OpCredentialIssued, credential.ID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", credential.ID,
		"subject", subject,
	)
	return credential, nil
}

// Revoke deactivates a credential. The record survives for audit; revoking
// an inactive credential is a conflict.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID) error {
	credential, err := s.find(ctx, credentialID)
	if err != nil {
		return err
	}
	if !credential.Active {
		return dErrors.New(dErrors.CodeStaleState, "credential already inactive")
	}

	now := requestcontext.Now(ctx)
	credential.Active = false
	credential.RevokedAt = &now
	if err := s.store.Update(ctx, credential); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}

	s.emit(ctx, notify.OpCredentialRevoked, credentialID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	s.logger.InfoContext(ctx, "credential revoked", "credential_id", credentialID)
	return nil
}

// Renew rebinds an active credential to a fresh commitment and validity. The
// old commitment is released and the new one claimed in one store update.
func (s *Service) Renew(ctx context.Context, credentialID id.CredentialID, newCommitment id.Commitment, newValidUntil time.Time, newMetadataPointer string) (*models.Credential, error) {
	if newCommitment.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "score commitment cannot be zero")
	}
	now := requestcontext.Now(ctx)
	if !newValidUntil.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "valid-until must be in the future")
	}

	credential, err := s.find(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if !credential.Active {
		return nil, dErrors.New(dErrors.CodeStaleState, "credential is not active")
	}

	credential.ScoreCommitment = newCommitment
	credential.ValidUntil = newValidUntil
	credential.MetadataPointer = newMetadataPointer
	credential.RenewedAt = &now
	if err := s.store.Update(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeCapacity, "score commitment already bound to an active credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}

	s.emit(ctx, notify.OpCredentialRenewed, credentialID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementRenewed()
	}
	s.logger.InfoContext(ctx, "credential renewed", "credential_id", credentialID)
	return credential, nil
}

// Get returns one credential.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	return s.find(ctx, credentialID)
}

// ListBySubject returns every credential ever minted to a subject, active or
// not.
func (s *Service) ListBySubject(ctx context.Context, subject id.IdentityID) ([]*models.Credential, error) {
	credentials, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return credentials, nil
}

func (s *Service) find(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	credential, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return credential, nil
}

func (s *Service) emit(ctx context.Context, operation, entityID, outcome string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, operation, entityID, outcome)
}
