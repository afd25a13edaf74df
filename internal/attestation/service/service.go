// Package service implements attestation verification: a validator whitelist,
// a signing-time validity window, and an idempotent verify step that fails
// closed. Submission and verification are deliberately separate calls so any
// observer can trigger the check, and whitelist membership is re-checked at
// verification time to make validator trust revocable.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scorepass/internal/attestation/metrics"
	"scorepass/internal/attestation/models"
	"scorepass/internal/attestation/signature"
	"scorepass/internal/notify"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/requestcontext"
)

// Store defines the persistence interface for attestation state.
// Error Contract:
// - Find methods return sentinel.ErrNotFound when absent
// - SaveRequest returns sentinel.ErrConflict when the derived ID exists
// - SaveAttestation overwrites a prior attestation for the same request
type Store interface {
	SaveRequest(ctx context.Context, request *models.Request) error
	FindRequest(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	UpdateRequest(ctx context.Context, request *models.Request) error
	SaveAttestation(ctx context.Context, attestation *models.Attestation) error
	FindAttestation(ctx context.Context, requestID id.RequestID) (*models.Attestation, error)
	SaveValidator(ctx context.Context, validator *models.Validator) error
	FindValidator(ctx context.Context, principal id.Principal) (*models.Validator, error)
	ListValidators(ctx context.Context) ([]*models.Validator, error)
}

// Option configures the Service.
type Option func(*Service)

const (
	defaultMinDelay = 1 * time.Hour
	defaultMaxAge   = 24 * time.Hour
)

// Verification rejection reasons, recorded in metrics and logs.
const (
	reasonStale          = "stale"
	reasonNotWhitelisted = "validator_not_whitelisted"
	reasonBadSignature   = "signature_mismatch"
	reasonTooFresh       = "min_delay_not_elapsed"
)

// Service drives attestation requests through Requested -> Attested ->
// Verified|Rejected.
type Service struct {
	store      Store
	notifier   *notify.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	domainSalt []byte

	windowMu sync.RWMutex
	minDelay time.Duration
	maxAge   time.Duration
}

// NewService constructs an attestation service. domainSalt binds signatures
// to one deployment; it must match what validators sign with.
func NewService(store Store, notifier *notify.Publisher, domainSalt []byte, opts ...Option) *Service {
	svc := &Service{
		store:      store,
		notifier:   notifier,
		logger:     slog.Default(),
		domainSalt: domainSalt,
		minDelay:   defaultMinDelay,
		maxAge:     defaultMaxAge,
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

// WithWindow sets the initial validity window.
func WithWindow(minDelay, maxAge time.Duration) Option {
	return func(s *Service) {
		if minDelay > 0 && maxAge > minDelay {
			s.minDelay = minDelay
			s.maxAge = maxAge
		}
	}
}

// SubmitRequest registers a data commitment for attestation and returns its
// derived request ID. The caller principal comes from the request context.
func (s *Service) SubmitRequest(ctx context.Context, commitment id.Commitment) (id.RequestID, error) {
	if commitment.IsZero() {
		return id.RequestID{}, dErrors.New(dErrors.CodeValidation, "commitment cannot be zero")
	}
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return id.RequestID{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller principal")
	}

	now := requestcontext.Now(ctx)
	request := &models.Request{
		ID:         id.DeriveRequestID(caller, commitment, now, s.domainSalt),
		Commitment: commitment,
		Requester:  caller,
		Status:     models.StatusRequested,
		CreatedAt:  now,
	}
	if err := s.store.SaveRequest(ctx, request); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return id.RequestID{}, dErrors.New(dErrors.CodeConflict, "request with this derived ID already exists")
		}
		return id.RequestID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attestation request")
	}

	s.emit(ctx, notify.OpAttestationRequested, request.ID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementRequests()
	}
	return request.ID, nil
}

// SubmitAttestation records a validator's signed claim over a request. Only a
// whitelisted validator may submit, the signature must verify against the
// validator's registered key, and at least minDelay must have elapsed since
// signing. A valid resubmission overwrites the previous attestation.
func (s *Service) SubmitAttestation(ctx context.Context, requestID id.RequestID, commitment id.Commitment, sig []byte, signedAt time.Time) error {
	if requestID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "request ID cannot be zero")
	}
	if commitment.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "commitment cannot be zero")
	}
	if len(sig) == 0 {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing caller principal")
	}

	request, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "attestation request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attestation request")
	}
	if request.Status.Processed() {
		return dErrors.New(dErrors.CodeStaleState, "request already processed")
	}
	if commitment != request.Commitment {
		return dErrors.New(dErrors.CodeValidation, "commitment does not match request")
	}

	validator, err := s.whitelistedValidator(ctx, caller)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	minDelay, _ := s.Window()
	if signedAt.After(now) {
		return dErrors.New(dErrors.CodeValidation, "signing time is in the future")
	}
	if now.Before(signedAt.Add(minDelay)) {
		s.recordSubmission(reasonTooFresh)
		return dErrors.New(dErrors.CodeValidation, "minimum delay since signing has not elapsed")
	}

	if err := signature.Verify(validator.PublicKey, requestID, commitment, signedAt, s.domainSalt, sig); err != nil {
		s.recordSubmission(reasonBadSignature)
		return dErrors.New(dErrors.CodeUnauthorized, "signature does not verify against validator key")
	}

	attestation := &models.Attestation{
		RequestID:  requestID,
		Commitment: commitment,
		Validator:  caller,
		Signature:  sig,
		SignedAt:   signedAt,
	}
	if err := s.store.SaveAttestation(ctx, attestation); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attestation")
	}
	request.Status = models.StatusAttested
	if err := s.store.UpdateRequest(ctx, request); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update attestation request")
	}

	s.emit(ctx, notify.OpAttestationSubmit, requestID.String(), notify.OutcomeOK)
	s.recordSubmission("accepted")
	s.logger.InfoContext(ctx, "attestation recorded",
		"request_id", requestID,
		"validator", caller,
		"signed_at", signedAt,
	)
	return nil
}

// Verify evaluates the recorded attestation for a request and moves the
// request to Verified or Rejected. The decision is final: a second call fails
// with AlreadyProcessed and never re-evaluates.
//
// Verification fails closed (returns false rather than an error) when the
// attestation is outside its validity window, the validator has been removed
// from the whitelist since submission, or the signature no longer verifies.
func (s *Service) Verify(ctx context.Context, requestID id.RequestID) (bool, error) {
	request, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "attestation request not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attestation request")
	}
	if request.Status.Processed() {
		return false, dErrors.New(dErrors.CodeAlreadyProcessed, "request already verified")
	}
	if request.Status != models.StatusAttested {
		return false, dErrors.New(dErrors.CodeValidation, "request has no recorded attestation")
	}

	attestation, err := s.store.FindAttestation(ctx, requestID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attestation")
	}

	now := requestcontext.Now(ctx)
	verified, reason := s.evaluate(ctx, attestation, now)

	request.ProcessedAt = &now
	if verified {
		request.Status = models.StatusVerified
	} else {
		request.Status = models.StatusRejected
	}
	if err := s.store.UpdateRequest(ctx, request); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update attestation request")
	}

	if s.metrics != nil {
		s.metrics.ObserveAttestationAge(now.Sub(attestation.SignedAt).Seconds())
	}
	if verified {
		s.emit(ctx, notify.OpAttestationVerified, requestID.String(), notify.OutcomeOK)
		s.recordVerification("verified")
		s.logger.InfoContext(ctx, "attestation verified", "request_id", requestID)
		return true, nil
	}

	s.emit(ctx, notify.OpAttestationRejected, requestID.String(), notify.OutcomeRejected)
	s.recordVerification(reason)
	s.logger.WarnContext(ctx, "attestation rejected",
		"request_id", requestID,
		"reason", reason,
	)
	return false, nil
}

// evaluate re-runs every acceptance check at verification time.
func (s *Service) evaluate(ctx context.Context, attestation *models.Attestation, now time.Time) (bool, string) {
	minDelay, maxAge := s.Window()
	if now.Before(attestation.SignedAt.Add(minDelay)) {
		return false, reasonTooFresh
	}
	if now.After(attestation.SignedAt.Add(maxAge)) {
		return false, reasonStale
	}

	validator, err := s.store.FindValidator(ctx, attestation.Validator)
	if err != nil || !validator.Enabled {
		return false, reasonNotWhitelisted
	}
	if err := signature.Verify(validator.PublicKey, attestation.RequestID, attestation.Commitment, attestation.SignedAt, s.domainSalt, attestation.Signature); err != nil {
		return false, reasonBadSignature
	}
	return true, ""
}

// Get returns one attestation request.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	request, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attestation request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attestation request")
	}
	return request, nil
}

// SetValidator adds or updates a whitelist entry. Admin-only; the transport
// layer gates the call.
func (s *Service) SetValidator(ctx context.Context, principal id.Principal, publicKey []byte, enabled bool) error {
	if principal.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "validator principal is required")
	}
	if len(publicKey) != 32 {
		return dErrors.New(dErrors.CodeValidation, "validator public key must be 32 bytes")
	}

	validator := &models.Validator{
		Principal: principal,
		PublicKey: publicKey,
		Enabled:   enabled,
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.SaveValidator(ctx, validator); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save validator")
	}

	s.emit(ctx, notify.OpValidatorUpdated, principal.String(), notify.OutcomeOK)
	s.logger.InfoContext(ctx, "validator whitelist updated",
		"validator", principal,
		"enabled", enabled,
	)
	return nil
}

// ListValidators returns the whitelist. Admin-only.
func (s *Service) ListValidators(ctx context.Context) ([]*models.Validator, error) {
	validators, err := s.store.ListValidators(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list validators")
	}
	return validators, nil
}

// SetWindow updates the validity window. Admin-only.
func (s *Service) SetWindow(ctx context.Context, minDelay, maxAge time.Duration) error {
	if minDelay <= 0 {
		return dErrors.New(dErrors.CodeValidation, "minimum delay must be positive")
	}
	if maxAge <= minDelay {
		return dErrors.New(dErrors.CodeValidation, "maximum age must exceed minimum delay")
	}

	s.windowMu.Lock()
	s.minDelay = minDelay
	s.maxAge = maxAge
	s.windowMu.Unlock()

	s.emit(ctx, notify.OpWindowUpdated, "attestation-window", notify.OutcomeOK)
	s.logger.InfoContext(ctx, "attestation window updated",
		"min_delay", minDelay,
		"max_age", maxAge,
	)
	return nil
}

// Window returns the current validity window.
func (s *Service) Window() (minDelay, maxAge time.Duration) {
	s.windowMu.RLock()
	defer s.windowMu.RUnlock()
	return s.minDelay, s.maxAge
}

func (s *Service) whitelistedValidator(ctx context.Context, principal id.Principal) (*models.Validator, error) {
	validator, err := s.store.FindValidator(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "caller is not a whitelisted validator")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read validator")
	}
	if !validator.Enabled {
		return nil, dErrors.New(dErrors.CodeForbidden, "validator is disabled")
	}
	return validator, nil
}

func (s *Service) emit(ctx context.Context, operation, entityID, outcome string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, operation, entityID, outcome)
}

func (s *Service) recordSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementSubmitted(outcome)
	}
}

func (s *Service) recordVerification(result string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(result)
	}
}
