package store

import (
	"context"
	"sync"

	"scorepass/internal/identity/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// Error Contract:
// - Find methods return sentinel.ErrNotFound when the identity does not exist
// - Save returns sentinel.ErrConflict when the principal is already registered
// - DeleteAuthorization returns sentinel.ErrNotFound when no grant exists

type authKey struct {
	identity  id.IdentityID
	requester id.Principal
}

// InMemoryStore keeps identities and authorization grants in memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	byID        map[id.IdentityID]*models.Identity
	byPrincipal map[id.Principal]id.IdentityID
	grants      map[authKey]*models.Authorization
}

// New constructs an empty in-memory identity store.
func New() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[id.IdentityID]*models.Identity),
		byPrincipal: make(map[id.Principal]id.IdentityID),
		grants:      make(map[authKey]*models.Authorization),
	}
}

func (s *InMemoryStore) Save(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPrincipal[identity.Principal]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byID[identity.ID]; ok {
		return sentinel.ErrConflict
	}
	copyIdentity := *identity
	s.byID[identity.ID] = &copyIdentity
	s.byPrincipal[identity.Principal] = identity.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byID[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyIdentity := *identity
	return &copyIdentity, nil
}

func (s *InMemoryStore) FindByPrincipal(_ context.Context, principal id.Principal) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identityID, ok := s.byPrincipal[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyIdentity := *s.byID[identityID]
	return &copyIdentity, nil
}

func (s *InMemoryStore) Update(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[identity.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copyIdentity := *identity
	s.byID[identity.ID] = &copyIdentity
	return nil
}

func (s *InMemoryStore) SaveAuthorization(_ context.Context, grant *models.Authorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[grant.IdentityID]; !ok {
		return sentinel.ErrNotFound
	}
	copyGrant := *grant
	s.grants[authKey{grant.IdentityID, grant.Requester}] = &copyGrant
	return nil
}

func (s *InMemoryStore) DeleteAuthorization(_ context.Context, identityID id.IdentityID, requester id.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := authKey{identityID, requester}
	if _, ok := s.grants[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.grants, key)
	return nil
}

func (s *InMemoryStore) IsAuthorized(_ context.Context, identityID id.IdentityID, requester id.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[authKey{identityID, requester}]
	return ok, nil
}

func (s *InMemoryStore) ListAuthorizations(_ context.Context, identityID id.IdentityID) ([]*models.Authorization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Authorization
	for key, grant := range s.grants {
		if key.identity != identityID {
			continue
		}
		copyGrant := *grant
		out = append(out, &copyGrant)
	}
	return out, nil
}
