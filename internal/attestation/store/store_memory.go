package store

import (
	"context"
	"sync"

	"scorepass/internal/attestation/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// Error Contract:
// - Find methods return sentinel.ErrNotFound when the entity does not exist
// - SaveRequest returns sentinel.ErrConflict when the derived ID already exists
// - SaveAttestation overwrites a prior attestation for the same request

// InMemoryStore keeps attestation requests, attestations, and the validator
// whitelist in memory.
type InMemoryStore struct {
	mu           sync.RWMutex
	requests     map[id.RequestID]*models.Request
	attestations map[id.RequestID]*models.Attestation
	validators   map[id.Principal]*models.Validator
}

// New constructs an empty in-memory attestation store.
func New() *InMemoryStore {
	return &InMemoryStore{
		requests:     make(map[id.RequestID]*models.Request),
		attestations: make(map[id.RequestID]*models.Attestation),
		validators:   make(map[id.Principal]*models.Validator),
	}
}

func (s *InMemoryStore) SaveRequest(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; ok {
		return sentinel.ErrConflict
	}
	copyRequest := *request
	s.requests[request.ID] = &copyRequest
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRequest := *request
	return &copyRequest, nil
}

func (s *InMemoryStore) UpdateRequest(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copyRequest := *request
	s.requests[request.ID] = &copyRequest
	return nil
}

func (s *InMemoryStore) SaveAttestation(_ context.Context, attestation *models.Attestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyAttestation := *attestation
	s.attestations[attestation.RequestID] = &copyAttestation
	return nil
}

func (s *InMemoryStore) FindAttestation(_ context.Context, requestID id.RequestID) (*models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attestation, ok := s.attestations[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyAttestation := *attestation
	return &copyAttestation, nil
}

func (s *InMemoryStore) SaveValidator(_ context.Context, validator *models.Validator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyValidator := *validator
	s.validators[validator.Principal] = &copyValidator
	return nil
}

func (s *InMemoryStore) FindValidator(_ context.Context, principal id.Principal) (*models.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	validator, ok := s.validators[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyValidator := *validator
	return &copyValidator, nil
}

func (s *InMemoryStore) ListValidators(_ context.Context) ([]*models.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Validator, 0, len(s.validators))
	for _, validator := range s.validators {
		copyValidator := *validator
		out = append(out, &copyValidator)
	}
	return out, nil
}
