// Package service implements the request orchestrator: the state machine
// that drives a credit score request from initiation through attestation,
// scoring, and credential issuance.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	credentialmodels "scorepass/internal/credential/models"
	"scorepass/internal/notify"
	"scorepass/internal/request/metrics"
	"scorepass/internal/request/models"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/enc"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/requestcontext"
)

// Store defines the persistence interface for credit score requests.
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when absent
// - Save returns sentinel.ErrConflict when the derived ID already exists
// - Update returns sentinel.ErrStale when the stored status no longer
//   matches the expected precondition
type Store interface {
	Save(ctx context.Context, request *models.CreditScoreRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error)
	Update(ctx context.Context, request *models.CreditScoreRequest, expected models.Status) error
	ListStuckBefore(ctx context.Context, cutoff time.Time) ([]*models.CreditScoreRequest, error)
}

// IdentityDirectory answers the capability questions asked at initiation.
type IdentityDirectory interface {
	IsVerified(ctx context.Context, identityID id.IdentityID) (bool, error)
	IsAuthorized(ctx context.Context, identityID id.IdentityID, requester id.Principal) (bool, error)
}

// AttestationService is the verifier the orchestrator delegates to. The
// request ID it derives at submission doubles as the orchestrator's own
// request ID.
type AttestationService interface {
	SubmitRequest(ctx context.Context, commitment id.Commitment) (id.RequestID, error)
	Verify(ctx context.Context, requestID id.RequestID) (bool, error)
}

// Scorer computes an encrypted score from an opaque input blob.
type Scorer interface {
	Compute(ctx context.Context, blob []byte) (enc.Cipher, error)
}

// CredentialIssuer mints and revokes credentials on completion.
type CredentialIssuer interface {
	Issue(ctx context.Context, subject id.IdentityID, scoreCommitment id.Commitment, validUntil time.Time, metadataPointer string) (*credentialmodels.Credential, error)
	Revoke(ctx context.Context, credentialID id.CredentialID) error
}

// Config carries the orchestrator's tunables.
type Config struct {
	// CredentialTTL is the validity window of credentials minted on
	// completion.
	CredentialTTL time.Duration
}

// DefaultCredentialTTL applies when Config.CredentialTTL is zero.
const DefaultCredentialTTL = 365 * 24 * time.Hour

// Option configures the Service.
type Option func(*Service)

// Service coordinates the request lifecycle across the identity,
// attestation, scoring, and credential contexts. Every state-advancing
// operation checks the current status and rejects on a stale precondition
// rather than silently no-opping: of two racing writers exactly one wins.
type Service struct {
	store        Store
	identities   IdentityDirectory
	attestations AttestationService
	scorer       Scorer
	credentials  CredentialIssuer
	backend      enc.Backend
	notifier     *notify.Publisher
	cfg          Config
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewService constructs the orchestrator over its collaborator ports.
func NewService(
	store Store,
	identities IdentityDirectory,
	attestations AttestationService,
	scorer Scorer,
	credentials CredentialIssuer,
	backend enc.Backend,
	notifier *notify.Publisher,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = DefaultCredentialTTL
	}
	svc := &Service{
		store:        store,
		identities:   identities,
		attestations: attestations,
		scorer:       scorer,
		credentials:  credentials,
		backend:      backend,
		notifier:     notifier,
		cfg:          cfg,
		logger:       slog.Default(),
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

// Initiate opens a new credit score request in Pending. The caller must be a
// requester the subject has authorized, and the subject must be verified.
// Submitting the data commitment to the attestation verifier is part of the
// same operation; the derived attestation request ID becomes the request ID.
func (s *Service) Initiate(ctx context.Context, subject id.IdentityID, dataCommitment id.Commitment) (*models.CreditScoreRequest, error) {
	requester := requestcontext.Principal(ctx)
	if requester == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "requester principal is required")
	}
	if subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if dataCommitment.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "data commitment cannot be zero")
	}

	verified, err := s.identities.IsVerified(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, dErrors.New(dErrors.CodeForbidden, "subject identity is not verified")
	}
	authorized, err := s.identities.IsAuthorized(ctx, subject, requester)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, dErrors.New(dErrors.CodeForbidden, "requester is not authorized by the subject")
	}

	requestID, err := s.attestations.SubmitRequest(ctx, dataCommitment)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	request := &models.CreditScoreRequest{
		ID:             requestID,
		Subject:        subject,
		Requester:      requester,
		DataCommitment: dataCommitment,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Save(ctx, request); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "request with this derived ID already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save request")
	}

	s.emit(ctx, notify.OpRequestInitiated, request.ID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementInitiated()
	}
	s.logger.InfoContext(ctx, "request initiated",
		"request_id", request.ID,
		"subject", subject,
		"requester", requester,
	)
	return request, nil
}

// OnAttestationProcessed runs verification for a Pending request. A positive
// decision advances it to AttestationVerified; a negative one fails it
// terminally. A verification error, such as no attestation recorded yet,
// leaves the request Pending so the attestation can still arrive.
func (s *Service) OnAttestationProcessed(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error) {
	request, err := s.find(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.StatusPending {
		return nil, s.staleErr("request is not pending")
	}

	accepted, err := s.attestations.Verify(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if accepted {
		if err := s.transition(ctx, request, models.StatusPending, models.StatusAttestationVerified, ""); err != nil {
			return nil, err
		}
		s.emit(ctx, notify.OpRequestAttested, requestID.String(), notify.OutcomeOK)
	} else {
		if err := s.transition(ctx, request, models.StatusPending, models.StatusFailed, "attestation rejected"); err != nil {
			return nil, err
		}
		s.emit(ctx, notify.OpRequestAttested, requestID.String(), notify.OutcomeRejected)
	}

	s.logger.InfoContext(ctx, "attestation processed",
		"request_id", requestID,
		"accepted", accepted,
	)
	return request, nil
}

// BeginScoring claims an AttestationVerified request for scoring. The
// compare-and-swap on the status makes the claim exclusive: a concurrent
// claimer loses with a stale-precondition rejection.
func (s *Service) BeginScoring(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error) {
	request, err := s.find(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.StatusAttestationVerified {
		return nil, s.staleErr("request attestation is not verified")
	}

	if err := s.transition(ctx, request, models.StatusAttestationVerified, models.StatusScoringInProgress, ""); err != nil {
		return nil, err
	}
	s.emit(ctx, notify.OpRequestScoring, requestID.String(), notify.OutcomeOK)
	s.logger.InfoContext(ctx, "scoring started", "request_id", requestID)
	return request, nil
}

// Score runs the full scoring leg in-process: claim the request, compute the
// encrypted score over the blob, and complete. A compute failure leaves the
// request ScoringInProgress for the sweeper rather than failing it, since
// the model may simply be inactive at the moment.
func (s *Service) Score(ctx context.Context, requestID id.RequestID, blob []byte) (*models.CreditScoreRequest, error) {
	if _, err := s.BeginScoring(ctx, requestID); err != nil {
		return nil, err
	}

	score, err := s.scorer.Compute(ctx, blob)
	if err != nil {
		return nil, err
	}
	encryptedScore, err := s.backend.Serialize(score)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize score")
	}
	return s.OnScoringResult(ctx, requestID, encryptedScore)
}

// OnScoringResult completes a request with an encrypted score, minting the
// credential. It accepts requests in AttestationVerified (result delivered
// out-of-band without an explicit claim) or ScoringInProgress.
func (s *Service) OnScoringResult(ctx context.Context, requestID id.RequestID, encryptedScore []byte) (*models.CreditScoreRequest, error) {
	if len(encryptedScore) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "encrypted score cannot be empty")
	}

	request, err := s.find(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.StatusAttestationVerified && request.Status != models.StatusScoringInProgress {
		return nil, s.staleErr("request is not awaiting a scoring result")
	}
	expected := request.Status

	now := requestcontext.Now(ctx)
	scoreCommitment := id.CommitmentOf(encryptedScore)
	credential, err := s.credentials.Issue(ctx,
		request.Subject,
		scoreCommitment,
		now.Add(s.cfg.CredentialTTL),
		fmt.Sprintf("scorepass://requests/%s", requestID),
	)
	if err != nil {
		return nil, err
	}

	request.Status = models.StatusCompleted
	request.EncryptedScore = encryptedScore
	request.ScoreCommitment = scoreCommitment
	request.CredentialID = &credential.ID
	request.UpdatedAt = now
	if err := s.store.Update(ctx, request, expected); err != nil {
		// The credential was minted before the swap; release it so the
		// winning writer's credential is the only live one.
		if revokeErr := s.credentials.Revoke(ctx, credential.ID); revokeErr != nil {
			s.logger.ErrorContext(ctx, "failed to revoke orphaned credential",
				"credential_id", credential.ID,
				"error", revokeErr,
			)
		}
		if errors.Is(err, sentinel.ErrStale) {
			return nil, s.staleErr("request advanced concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request")
	}

	s.emit(ctx, notify.OpRequestCompleted, requestID.String(), notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.StatusCompleted))
	}
	s.logger.InfoContext(ctx, "request completed",
		"request_id", requestID,
		"credential_id", credential.ID,
	)
	return request, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error) {
	return s.find(ctx, requestID)
}

// FailExpired terminally fails every non-terminal request last touched
// before now minus deadline. It returns the number of requests failed.
// Requests that advance concurrently are skipped, not errors.
func (s *Service) FailExpired(ctx context.Context, deadline time.Duration) (int, error) {
	now := requestcontext.Now(ctx)
	stuck, err := s.store.ListStuckBefore(ctx, now.Add(-deadline))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stuck requests")
	}

	failed := 0
	for _, request := range stuck {
		expected := request.Status
		request.Status = models.StatusFailed
		request.FailureReason = "request deadline exceeded"
		request.UpdatedAt = now
		if err := s.store.Update(ctx, request, expected); err != nil {
			if errors.Is(err, sentinel.ErrStale) || errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return failed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fail stuck request")
		}
		failed++
		s.emit(ctx, notify.OpRequestFailed, request.ID.String(), notify.OutcomeOK)
		if s.metrics != nil {
			s.metrics.IncrementSwept()
		}
		s.logger.WarnContext(ctx, "request failed by sweeper",
			"request_id", request.ID,
			"stuck_in", string(expected),
		)
	}
	return failed, nil
}

// transition swaps the request from expected to next, mutating the passed
// request in place on success.
func (s *Service) transition(ctx context.Context, request *models.CreditScoreRequest, expected, next models.Status, reason string) error {
	request.Status = next
	request.FailureReason = reason
	request.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, request, expected); err != nil {
		if errors.Is(err, sentinel.ErrStale) {
			return s.staleErr("request advanced concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request")
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(next))
	}
	return nil
}

func (s *Service) find(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error) {
	request, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read request")
	}
	return request, nil
}

func (s *Service) staleErr(msg string) error {
	if s.metrics != nil {
		s.metrics.IncrementStale()
	}
	return dErrors.New(dErrors.CodeStaleState, msg)
}

func (s *Service) emit(ctx context.Context, operation, entityID, outcome string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, operation, entityID, outcome)
}
