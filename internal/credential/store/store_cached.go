package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scorepass/internal/credential/models"
	id "scorepass/pkg/domain"
)

const credentialKeyPrefix = "credential:"

// Store is the persistence surface the cache decorates.
type Store interface {
	Save(ctx context.Context, credential *models.Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	Update(ctx context.Context, credential *models.Credential) error
	FindActiveByCommitment(ctx context.Context, commitment id.Commitment) (*models.Credential, error)
	ListBySubject(ctx context.Context, subject id.IdentityID) ([]*models.Credential, error)
}

// CachedStore is a read-through Redis cache over a credential store. Lookups
// by ID are cached with TTL eviction; any write invalidates the entry before
// hitting the inner store so a failed write never leaves a stale hit behind.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
}

// NewCached decorates the inner store with a Redis cache.
func NewCached(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

func credentialKey(credentialID id.CredentialID) string {
	return credentialKeyPrefix + credentialID.String()
}

func (s *CachedStore) Save(ctx context.Context, credential *models.Credential) error {
	return s.inner.Save(ctx, credential)
}

func (s *CachedStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	data, err := s.client.Get(ctx, credentialKey(credentialID)).Bytes()
	if err == nil {
		var credential models.Credential
		if err := json.Unmarshal(data, &credential); err == nil {
			return &credential, nil
		}
		// Unreadable entry: fall through to the inner store and rewrite.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("credential cache get: %w", err)
	}

	credential, err := s.inner.FindByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(credential); err == nil {
		// Cache write failures degrade to uncached reads.
		_ = s.client.Set(ctx, credentialKey(credentialID), payload, s.ttl).Err()
	}
	return credential, nil
}

func (s *CachedStore) Update(ctx context.Context, credential *models.Credential) error {
	if err := s.client.Del(ctx, credentialKey(credential.ID)).Err(); err != nil {
		return fmt.Errorf("credential cache invalidate: %w", err)
	}
	return s.inner.Update(ctx, credential)
}

func (s *CachedStore) FindActiveByCommitment(ctx context.Context, commitment id.Commitment) (*models.Credential, error) {
	return s.inner.FindActiveByCommitment(ctx, commitment)
}

func (s *CachedStore) ListBySubject(ctx context.Context, subject id.IdentityID) ([]*models.Credential, error) {
	return s.inner.ListBySubject(ctx, subject)
}

var _ Store = (*CachedStore)(nil)
