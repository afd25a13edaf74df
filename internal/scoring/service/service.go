// Package service wires the scoring engine to its model parameter store.
// Compute is a pure function over the blob and the current parameters: it
// fails only when the model is inactive or unset, never on feature values.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scorepass/internal/notify"
	"scorepass/internal/scoring/engine"
	"scorepass/internal/scoring/metrics"
	"scorepass/internal/scoring/models"
	"scorepass/internal/scoring/tracer"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/enc"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/requestcontext"
)

// Store defines the persistence interface for model parameters.
// Error Contract:
// - GetParameters returns sentinel.ErrNotFound until parameters are set
type Store interface {
	SaveParameters(ctx context.Context, params *models.ModelParameters) error
	GetParameters(ctx context.Context) (*models.ModelParameters, error)
}

// Option configures the Service.
type Option func(*Service)

// Service computes encrypted credit scores.
type Service struct {
	store    Store
	backend  enc.Backend
	notifier *notify.Publisher
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
}

// NewService constructs a scoring service over the given backend and store.
func NewService(store Store, backend enc.Backend, notifier *notify.Publisher, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		backend:  backend,
		notifier: notifier,
		tracer:   tracer.Noop(),
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

// WithTracer sets the tracer for the service.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Compute derives features from the blob and evaluates the model, returning
// an encrypted score in [300, 850]. Adversarial feature values are clamped,
// never rejected; the only failure modes are an unset or inactive model.
func (s *Service) Compute(ctx context.Context, blob []byte) (enc.Cipher, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanCompute,
		tracer.Int64(tracer.AttrBlobBytes, int64(len(blob))),
	)

	score, err := s.compute(ctx, blob)
	span.End(err)

	if s.metrics != nil {
		s.metrics.ObserveComputeDuration(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
		}
		s.metrics.IncrementComputations(outcome)
	}
	return score, err
}

func (s *Service) compute(ctx context.Context, blob []byte) (enc.Cipher, error) {
	params, err := s.store.GetParameters(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return enc.Cipher{}, dErrors.New(dErrors.CodeStaleState, "model parameters are not set")
		}
		return enc.Cipher{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read model parameters")
	}
	if !params.Active {
		return enc.Cipher{}, dErrors.New(dErrors.CodeStaleState, "scoring model is not active")
	}

	_, extractSpan := s.tracer.Start(ctx, tracer.SpanExtractFeatures)
	features := engine.ExtractFeatures(s.backend, blob)
	extractSpan.End(nil)

	_, modelSpan := s.tracer.Start(ctx, tracer.SpanApplyModel)
	score := engine.ApplyModel(s.backend, features, params)
	modelSpan.End(nil)

	return score, nil
}

// SetParameters replaces the model configuration. Plaintext inputs are
// encrypted on receipt and the plaintexts are not retained. Admin-only.
func (s *Service) SetParameters(ctx context.Context, baseScore, riskMultiplier, creditCeiling uint64) error {
	if baseScore == 0 {
		return dErrors.New(dErrors.CodeValidation, "base score must be positive")
	}
	if riskMultiplier == 0 {
		return dErrors.New(dErrors.CodeValidation, "risk multiplier must be positive")
	}
	if creditCeiling == 0 {
		return dErrors.New(dErrors.CodeValidation, "credit ceiling must be positive")
	}

	existing, err := s.store.GetParameters(ctx)
	active := false
	if err == nil {
		active = existing.Active
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read model parameters")
	}

	params := &models.ModelParameters{
		BaseScore:      s.backend.Encrypt(baseScore),
		RiskMultiplier: s.backend.Encrypt(riskMultiplier),
		CreditCeiling:  s.backend.Encrypt(creditCeiling),
		Active:         active,
		UpdatedAt:      requestcontext.Now(ctx),
	}
	if err := s.store.SaveParameters(ctx, params); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save model parameters")
	}

	s.emit(ctx, notify.OpModelUpdated, "scoring-model", notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementParameterUpdates()
	}
	s.logger.InfoContext(ctx, "model parameters updated")
	return nil
}

// SetActive toggles the model. Activation requires parameters to exist.
func (s *Service) SetActive(ctx context.Context, active bool) error {
	params, err := s.store.GetParameters(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeStaleState, "model parameters are not set")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read model parameters")
	}

	params.Active = active
	params.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.SaveParameters(ctx, params); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save model parameters")
	}

	s.emit(ctx, notify.OpModelActivated, "scoring-model", notify.OutcomeOK)
	if s.metrics != nil {
		s.metrics.IncrementActivationChanges()
	}
	s.logger.InfoContext(ctx, "model activation changed", "active", active)
	return nil
}

// Parameters returns the admin-facing view of the model configuration.
func (s *Service) Parameters(ctx context.Context) (*models.ParametersInfo, error) {
	params, err := s.store.GetParameters(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "model parameters are not set")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read model parameters")
	}
	return &models.ParametersInfo{Active: params.Active, UpdatedAt: params.UpdatedAt}, nil
}

func (s *Service) emit(ctx context.Context, operation, entityID, outcome string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, operation, entityID, outcome)
}
