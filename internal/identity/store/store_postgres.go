package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"scorepass/internal/identity/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// PostgresStore persists identities and authorization grants in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE identities (
//	    id          UUID PRIMARY KEY,
//	    principal   TEXT NOT NULL UNIQUE,
//	    external_id TEXT NOT NULL,
//	    verified    BOOLEAN NOT NULL DEFAULT FALSE,
//	    verified_at TIMESTAMPTZ,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE identity_authorizations (
//	    identity_id UUID NOT NULL REFERENCES identities (id),
//	    requester   TEXT NOT NULL,
//	    granted_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (identity_id, requester)
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	query := `
		INSERT INTO identities (id, principal, external_id, verified, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var storedID uuid.UUID
	err := s.db.QueryRowContext(ctx, query,
		uuid.UUID(identity.ID),
		string(identity.Principal),
		identity.ExternalID,
		identity.Verified,
		identity.VerifiedAt,
		identity.CreatedAt,
		identity.UpdatedAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	query := `
		SELECT id, principal, external_id, verified, verified_at, created_at, updated_at
		FROM identities
		WHERE id = $1
	`
	return scanIdentity(s.db.QueryRowContext(ctx, query, uuid.UUID(identityID)))
}

func (s *PostgresStore) FindByPrincipal(ctx context.Context, principal id.Principal) (*models.Identity, error) {
	query := `
		SELECT id, principal, external_id, verified, verified_at, created_at, updated_at
		FROM identities
		WHERE principal = $1
	`
	return scanIdentity(s.db.QueryRowContext(ctx, query, string(principal)))
}

func (s *PostgresStore) Update(ctx context.Context, identity *models.Identity) error {
	query := `
		UPDATE identities
		SET verified = $2, verified_at = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(identity.ID),
		identity.Verified,
		identity.VerifiedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveAuthorization(ctx context.Context, grant *models.Authorization) error {
	query := `
		INSERT INTO identity_authorizations (identity_id, requester, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_id, requester) DO UPDATE SET granted_at = EXCLUDED.granted_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		uuid.UUID(grant.IdentityID),
		string(grant.Requester),
		grant.GrantedAt,
	); err != nil {
		return fmt.Errorf("save authorization: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAuthorization(ctx context.Context, identityID id.IdentityID, requester id.Principal) error {
	query := `DELETE FROM identity_authorizations WHERE identity_id = $1 AND requester = $2`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(identityID), string(requester))
	if err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IsAuthorized(ctx context.Context, identityID id.IdentityID, requester id.Principal) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM identity_authorizations WHERE identity_id = $1 AND requester = $2)`
	var authorized bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(identityID), string(requester)).Scan(&authorized); err != nil {
		return false, fmt.Errorf("check authorization: %w", err)
	}
	return authorized, nil
}

func (s *PostgresStore) ListAuthorizations(ctx context.Context, identityID id.IdentityID) ([]*models.Authorization, error) {
	query := `
		SELECT identity_id, requester, granted_at
		FROM identity_authorizations
		WHERE identity_id = $1
		ORDER BY granted_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(identityID))
	if err != nil {
		return nil, fmt.Errorf("list authorizations: %w", err)
	}
	defer rows.Close()

	var grants []*models.Authorization
	for rows.Next() {
		var (
			grant      models.Authorization
			identityID uuid.UUID
			requester  string
		)
		if err := rows.Scan(&identityID, &requester, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan authorization: %w", err)
		}
		grant.IdentityID = id.IdentityID(identityID)
		grant.Requester = id.Principal(requester)
		grants = append(grants, &grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authorizations: %w", err)
	}
	return grants, nil
}

func scanIdentity(row *sql.Row) (*models.Identity, error) {
	var (
		identity   models.Identity
		identityID uuid.UUID
		principal  string
	)
	err := row.Scan(
		&identityID,
		&principal,
		&identity.ExternalID,
		&identity.Verified,
		&identity.VerifiedAt,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	identity.ID = id.IdentityID(identityID)
	identity.Principal = id.Principal(principal)
	return &identity, nil
}
