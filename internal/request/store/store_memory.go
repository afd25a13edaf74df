package store

import (
	"context"
	"sync"
	"time"

	"scorepass/internal/request/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// InMemoryStore is a thread-safe in-memory request store for tests and
// local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.CreditScoreRequest
}

// New creates an empty in-memory request store.
func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]*models.CreditScoreRequest)}
}

func (s *InMemoryStore) Save(ctx context.Context, request *models.CreditScoreRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[request.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, exists := s.requests[requestID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	clone := *request
	return &clone, nil
}

// Update persists the request only if the stored status still equals
// expected. A mismatch means another writer advanced the request first and
// surfaces as sentinel.ErrStale.
func (s *InMemoryStore) Update(ctx context.Context, request *models.CreditScoreRequest, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.requests[request.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrStale
	}
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

// ListStuckBefore returns every non-terminal request last updated before the
// cutoff.
func (s *InMemoryStore) ListStuckBefore(ctx context.Context, cutoff time.Time) ([]*models.CreditScoreRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stuck []*models.CreditScoreRequest
	for _, request := range s.requests {
		if request.Status.Terminal() || !request.UpdatedAt.Before(cutoff) {
			continue
		}
		clone := *request
		stuck = append(stuck, &clone)
	}
	return stuck, nil
}
