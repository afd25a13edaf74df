package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scorepass/internal/attestation/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// PostgresStore persists attestation state in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE attestation_requests (
//	    id           BYTEA PRIMARY KEY,
//	    commitment   BYTEA NOT NULL,
//	    requester    TEXT NOT NULL,
//	    status       TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    processed_at TIMESTAMPTZ
//	);
//	CREATE TABLE attestations (
//	    request_id BYTEA PRIMARY KEY REFERENCES attestation_requests (id),
//	    commitment BYTEA NOT NULL,
//	    validator  TEXT NOT NULL,
//	    signature  BYTEA NOT NULL,
//	    signed_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE attestation_validators (
//	    principal  TEXT PRIMARY KEY,
//	    public_key BYTEA NOT NULL,
//	    enabled    BOOLEAN NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed attestation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveRequest(ctx context.Context, request *models.Request) error {
	query := `
		INSERT INTO attestation_requests (id, commitment, requester, status, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var stored []byte
	err := s.db.QueryRowContext(ctx, query,
		request.ID[:],
		request.Commitment[:],
		string(request.Requester),
		string(request.Status),
		request.CreatedAt,
		request.ProcessedAt,
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save attestation request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	query := `
		SELECT id, commitment, requester, status, created_at, processed_at
		FROM attestation_requests
		WHERE id = $1
	`
	var (
		request   models.Request
		rawID     []byte
		rawCommit []byte
		requester string
		status    string
	)
	err := s.db.QueryRowContext(ctx, query, requestID[:]).Scan(
		&rawID,
		&rawCommit,
		&requester,
		&status,
		&request.CreatedAt,
		&request.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attestation request: %w", err)
	}
	copy(request.ID[:], rawID)
	copy(request.Commitment[:], rawCommit)
	request.Requester = id.Principal(requester)
	request.Status = models.Status(status)
	return &request, nil
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, request *models.Request) error {
	query := `
		UPDATE attestation_requests
		SET status = $2, processed_at = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		request.ID[:],
		string(request.Status),
		request.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update attestation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attestation request: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveAttestation(ctx context.Context, attestation *models.Attestation) error {
	query := `
		INSERT INTO attestations (request_id, commitment, validator, signature, signed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO UPDATE
		SET commitment = EXCLUDED.commitment,
		    validator  = EXCLUDED.validator,
		    signature  = EXCLUDED.signature,
		    signed_at  = EXCLUDED.signed_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		attestation.RequestID[:],
		attestation.Commitment[:],
		string(attestation.Validator),
		attestation.Signature,
		attestation.SignedAt,
	); err != nil {
		return fmt.Errorf("save attestation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAttestation(ctx context.Context, requestID id.RequestID) (*models.Attestation, error) {
	query := `
		SELECT request_id, commitment, validator, signature, signed_at
		FROM attestations
		WHERE request_id = $1
	`
	var (
		attestation models.Attestation
		rawID       []byte
		rawCommit   []byte
		validator   string
	)
	err := s.db.QueryRowContext(ctx, query, requestID[:]).Scan(
		&rawID,
		&rawCommit,
		&validator,
		&attestation.Signature,
		&attestation.SignedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attestation: %w", err)
	}
	copy(attestation.RequestID[:], rawID)
	copy(attestation.Commitment[:], rawCommit)
	attestation.Validator = id.Principal(validator)
	return &attestation, nil
}

func (s *PostgresStore) SaveValidator(ctx context.Context, validator *models.Validator) error {
	query := `
		INSERT INTO attestation_validators (principal, public_key, enabled, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal) DO UPDATE
		SET public_key = EXCLUDED.public_key,
		    enabled    = EXCLUDED.enabled,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		string(validator.Principal),
		[]byte(validator.PublicKey),
		validator.Enabled,
		validator.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save validator: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindValidator(ctx context.Context, principal id.Principal) (*models.Validator, error) {
	query := `
		SELECT principal, public_key, enabled, updated_at
		FROM attestation_validators
		WHERE principal = $1
	`
	var (
		validator models.Validator
		name      string
		rawKey    []byte
	)
	err := s.db.QueryRowContext(ctx, query, string(principal)).Scan(
		&name,
		&rawKey,
		&validator.Enabled,
		&validator.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find validator: %w", err)
	}
	validator.Principal = id.Principal(name)
	validator.PublicKey = rawKey
	return &validator, nil
}

func (s *PostgresStore) ListValidators(ctx context.Context) ([]*models.Validator, error) {
	query := `
		SELECT principal, public_key, enabled, updated_at
		FROM attestation_validators
		ORDER BY principal
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list validators: %w", err)
	}
	defer rows.Close()

	var validators []*models.Validator
	for rows.Next() {
		var (
			validator models.Validator
			name      string
			rawKey    []byte
		)
		if err := rows.Scan(&name, &rawKey, &validator.Enabled, &validator.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan validator: %w", err)
		}
		validator.Principal = id.Principal(name)
		validator.PublicKey = rawKey
		validators = append(validators, &validator)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validators: %w", err)
	}
	return validators, nil
}
