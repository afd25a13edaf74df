package store

import (
	"context"
	"sync"

	"scorepass/internal/scoring/models"
	"scorepass/pkg/platform/sentinel"
)

// Error Contract:
// - GetParameters returns sentinel.ErrNotFound until parameters are set

// InMemoryStore keeps the model parameter aggregate in memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	params *models.ModelParameters
}

// New constructs an empty in-memory parameter store.
func New() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveParameters(_ context.Context, params *models.ModelParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyParams := *params
	s.params = &copyParams
	return nil
}

func (s *InMemoryStore) GetParameters(_ context.Context) (*models.ModelParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.params == nil {
		return nil, sentinel.ErrNotFound
	}
	copyParams := *s.params
	return &copyParams, nil
}
