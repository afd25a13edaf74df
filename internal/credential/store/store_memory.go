package store

import (
	"context"
	"sync"

	"scorepass/internal/credential/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// Error Contract:
// - FindByID returns sentinel.ErrNotFound when the credential does not exist
// - Save and Update return sentinel.ErrConflict when the commitment is
//   already bound to another active credential
// - Update returns sentinel.ErrInvalidState on an attempted subject change;
//   the subject binding is structural and no caller may mutate it

// InMemoryStore keeps credentials in memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*models.Credential
	activeBound map[id.Commitment]id.CredentialID
}

// New constructs an empty in-memory credential store.
func New() *InMemoryStore {
	return &InMemoryStore{
		credentials: make(map[id.CredentialID]*models.Credential),
		activeBound: make(map[id.Commitment]id.CredentialID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[credential.ID]; ok {
		return sentinel.ErrConflict
	}
	if credential.Active {
		if _, bound := s.activeBound[credential.ScoreCommitment]; bound {
			return sentinel.ErrConflict
		}
		s.activeBound[credential.ScoreCommitment] = credential.ID
	}
	copyCredential := *credential
	s.credentials[credential.ID] = &copyCredential
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyCredential := *credential
	return &copyCredential, nil
}

// Update atomically rebinds the commitment index alongside the record, so
// renewal releases the old commitment and claims the new one in one step.
func (s *InMemoryStore) Update(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.credentials[credential.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Subject != credential.Subject {
		return sentinel.ErrInvalidState
	}
	if credential.Active {
		if boundTo, bound := s.activeBound[credential.ScoreCommitment]; bound && boundTo != credential.ID {
			return sentinel.ErrConflict
		}
	}

	if existing.Active {
		delete(s.activeBound, existing.ScoreCommitment)
	}
	if credential.Active {
		s.activeBound[credential.ScoreCommitment] = credential.ID
	}
	copyCredential := *credential
	s.credentials[credential.ID] = &copyCredential
	return nil
}

func (s *InMemoryStore) FindActiveByCommitment(_ context.Context, commitment id.Commitment) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credentialID, ok := s.activeBound[commitment]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyCredential := *s.credentials[credentialID]
	return &copyCredential, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject id.IdentityID) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, credential := range s.credentials {
		if credential.Subject != subject {
			continue
		}
		copyCredential := *credential
		out = append(out, &copyCredential)
	}
	return out, nil
}
