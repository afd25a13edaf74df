package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"scorepass/internal/credential/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// PostgresStore persists credentials in PostgreSQL. The partial unique index
// enforces the one-live-credential-per-commitment invariant at the database
// level, so a racing issue or renew loses with a unique violation.
//
// Schema:
//
//	CREATE TABLE credentials (
//	    id               UUID PRIMARY KEY,
//	    subject          UUID NOT NULL,
//	    score_commitment BYTEA NOT NULL,
//	    issued_at        TIMESTAMPTZ NOT NULL,
//	    valid_until      TIMESTAMPTZ NOT NULL,
//	    metadata_pointer TEXT NOT NULL,
//	    active           BOOLEAN NOT NULL,
//	    revoked_at       TIMESTAMPTZ,
//	    renewed_at       TIMESTAMPTZ
//	);
//	CREATE UNIQUE INDEX credentials_active_commitment_idx
//	    ON credentials (score_commitment) WHERE active;
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (s *PostgresStore) Save(ctx context.Context, credential *models.Credential) error {
	query := `
		INSERT INTO credentials (id, subject, score_commitment, issued_at, valid_until, metadata_pointer, active, revoked_at, renewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(credential.ID),
		uuid.UUID(credential.Subject),
		credential.ScoreCommitment[:],
		credential.IssuedAt,
		credential.ValidUntil,
		credential.MetadataPointer,
		credential.Active,
		credential.RevokedAt,
		credential.RenewedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	query := selectCredential + ` WHERE id = $1`
	return scanCredential(s.db.QueryRowContext(ctx, query, uuid.UUID(credentialID)))
}

// Update never touches the subject column; the WHERE clause additionally pins
// it so a mismatched subject surfaces as an invalid-state error.
func (s *PostgresStore) Update(ctx context.Context, credential *models.Credential) error {
	query := `
		UPDATE credentials
		SET score_commitment = $3, valid_until = $4, metadata_pointer = $5,
		    active = $6, revoked_at = $7, renewed_at = $8
		WHERE id = $1 AND subject = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		uuid.UUID(credential.ID),
		uuid.UUID(credential.Subject),
		credential.ScoreCommitment[:],
		credential.ValidUntil,
		credential.MetadataPointer,
		credential.Active,
		credential.RevokedAt,
		credential.RenewedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if rows == 0 {
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM credentials WHERE id = $1)`
		if err := s.db.QueryRowContext(ctx, check, uuid.UUID(credential.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("update credential: %w", err)
		}
		if exists {
			return sentinel.ErrInvalidState
		}
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindActiveByCommitment(ctx context.Context, commitment id.Commitment) (*models.Credential, error) {
	query := selectCredential + ` WHERE score_commitment = $1 AND active`
	return scanCredential(s.db.QueryRowContext(ctx, query, commitment[:]))
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.IdentityID) ([]*models.Credential, error) {
	query := selectCredential + ` WHERE subject = $1 ORDER BY issued_at`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(subject))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*models.Credential
	for rows.Next() {
		credential, err := scanCredentialRow(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return credentials, nil
}

const selectCredential = `
	SELECT id, subject, score_commitment, issued_at, valid_until, metadata_pointer, active, revoked_at, renewed_at
	FROM credentials`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row *sql.Row) (*models.Credential, error) {
	credential, err := scanCredentialRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return credential, nil
}

func scanCredentialRow(row rowScanner) (*models.Credential, error) {
	var (
		credential   models.Credential
		credentialID uuid.UUID
		subject      uuid.UUID
		rawCommit    []byte
	)
	err := row.Scan(
		&credentialID,
		&subject,
		&rawCommit,
		&credential.IssuedAt,
		&credential.ValidUntil,
		&credential.MetadataPointer,
		&credential.Active,
		&credential.RevokedAt,
		&credential.RenewedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	credential.ID = id.CredentialID(credentialID)
	credential.Subject = id.IdentityID(subject)
	copy(credential.ScoreCommitment[:], rawCommit)
	return &credential, nil
}
