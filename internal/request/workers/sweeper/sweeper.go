// Package sweeper terminally fails requests stuck in a non-terminal status
// past the configured deadline. Without it, a request that never receives an
// attestation or a scoring result would stay open forever.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Service is the slice of the request orchestrator the sweeper needs.
type Service interface {
	FailExpired(ctx context.Context, deadline time.Duration) (int, error)
}

// Sweeper periodically fails expired requests.
type Sweeper struct {
	svc      Service
	deadline time.Duration
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between sweeps.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// New creates a sweeper that fails requests older than deadline.
func New(svc Service, deadline time.Duration, opts ...Option) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Sweeper{
		svc:      svc,
		deadline: deadline,
		interval: 5 * time.Minute,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Run blocks sweeping until ctx is cancelled. Used under errgroup in main.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	failed, err := s.svc.FailExpired(ctx, s.deadline)
	if err != nil {
		if ctx.Err() == nil && s.logger != nil {
			s.logger.Error("sweep failed", "error", err)
		}
		return
	}
	if failed > 0 && s.logger != nil {
		s.logger.Warn("failed expired requests", "count", failed)
	}
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}
