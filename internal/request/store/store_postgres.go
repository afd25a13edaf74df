package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scorepass/internal/request/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
)

// PostgresStore persists credit score requests in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE credit_score_requests (
//	    id               BYTEA PRIMARY KEY,
//	    subject          UUID NOT NULL,
//	    requester        TEXT NOT NULL,
//	    data_commitment  BYTEA NOT NULL,
//	    status           TEXT NOT NULL,
//	    encrypted_score  BYTEA,
//	    score_commitment BYTEA,
//	    credential_id    UUID,
//	    failure_reason   TEXT NOT NULL DEFAULT '',
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX credit_score_requests_status_idx
//	    ON credit_score_requests (status, updated_at);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectRequest = `
	SELECT id, subject, requester, data_commitment, status,
	       encrypted_score, score_commitment, credential_id,
	       failure_reason, created_at, updated_at
	FROM credit_score_requests
`

func (s *PostgresStore) Save(ctx context.Context, request *models.CreditScoreRequest) error {
	query := `
		INSERT INTO credit_score_requests
			(id, subject, requester, data_commitment, status,
			 encrypted_score, score_commitment, credential_id,
			 failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var stored []byte
	err := s.db.QueryRowContext(ctx, query,
		request.ID[:],
		request.Subject.String(),
		string(request.Requester),
		request.DataCommitment[:],
		string(request.Status),
		request.EncryptedScore,
		commitmentBytes(request.ScoreCommitment),
		credentialIDString(request.CredentialID),
		request.FailureReason,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.CreditScoreRequest, error) {
	row := s.db.QueryRowContext(ctx, selectRequest+` WHERE id = $1`, requestID[:])
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return request, nil
}

// Update applies the request only where the stored status still equals
// expected. The status predicate in the WHERE clause is the compare-and-swap:
// a concurrent writer that advanced the row first leaves zero rows affected,
// which surfaces as sentinel.ErrStale.
func (s *PostgresStore) Update(ctx context.Context, request *models.CreditScoreRequest, expected models.Status) error {
	query := `
		UPDATE credit_score_requests
		SET status = $2,
		    encrypted_score = $3,
		    score_commitment = $4,
		    credential_id = $5,
		    failure_reason = $6,
		    updated_at = $7
		WHERE id = $1 AND status = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		request.ID[:],
		string(request.Status),
		request.EncryptedScore,
		commitmentBytes(request.ScoreCommitment),
		credentialIDString(request.CredentialID),
		request.FailureReason,
		request.UpdatedAt,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, request.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStale
	}
	return nil
}

func (s *PostgresStore) ListStuckBefore(ctx context.Context, cutoff time.Time) ([]*models.CreditScoreRequest, error) {
	query := selectRequest + `
		WHERE status NOT IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at
	`
	rows, err := s.db.QueryContext(ctx, query,
		string(models.StatusCompleted),
		string(models.StatusFailed),
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list stuck requests: %w", err)
	}
	defer rows.Close()

	var stuck []*models.CreditScoreRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		stuck = append(stuck, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return stuck, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.CreditScoreRequest, error) {
	var (
		request      models.CreditScoreRequest
		rawID        []byte
		subject      string
		requester    string
		rawCommit    []byte
		status       string
		rawScoreCmt  []byte
		credentialID sql.NullString
	)
	if err := row.Scan(
		&rawID,
		&subject,
		&requester,
		&rawCommit,
		&status,
		&request.EncryptedScore,
		&rawScoreCmt,
		&credentialID,
		&request.FailureReason,
		&request.CreatedAt,
		&request.UpdatedAt,
	); err != nil {
		return nil, err
	}
	copy(request.ID[:], rawID)
	copy(request.DataCommitment[:], rawCommit)
	copy(request.ScoreCommitment[:], rawScoreCmt)
	parsedSubject, err := id.ParseIdentityID(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject: %w", err)
	}
	request.Subject = parsedSubject
	request.Requester = id.Principal(requester)
	request.Status = models.Status(status)
	if credentialID.Valid {
		parsed, err := id.ParseCredentialID(credentialID.String)
		if err != nil {
			return nil, fmt.Errorf("parse credential id: %w", err)
		}
		request.CredentialID = &parsed
	}
	return &request, nil
}

func commitmentBytes(c id.Commitment) []byte {
	if c.IsZero() {
		return nil
	}
	return c[:]
}

func credentialIDString(credentialID *id.CredentialID) any {
	if credentialID == nil {
		return nil
	}
	return credentialID.String()
}
