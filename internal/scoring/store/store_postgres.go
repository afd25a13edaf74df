package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scorepass/internal/scoring/models"
	"scorepass/pkg/enc"
	"scorepass/pkg/platform/sentinel"
)

// PostgresStore persists the model parameter aggregate as a single row.
// Ciphertexts are serialized through the backend, so the row is only readable
// by a deployment holding the same key material.
//
// Schema:
//
//	CREATE TABLE scoring_parameters (
//	    id              SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
//	    base_score      BYTEA NOT NULL,
//	    risk_multiplier BYTEA NOT NULL,
//	    credit_ceiling  BYTEA NOT NULL,
//	    active          BOOLEAN NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db      *sql.DB
	backend enc.Backend
}

// NewPostgres constructs a PostgreSQL-backed parameter store.
func NewPostgres(db *sql.DB, backend enc.Backend) *PostgresStore {
	return &PostgresStore{db: db, backend: backend}
}

func (s *PostgresStore) SaveParameters(ctx context.Context, params *models.ModelParameters) error {
	base, err := s.backend.Serialize(params.BaseScore)
	if err != nil {
		return fmt.Errorf("serialize base score: %w", err)
	}
	multiplier, err := s.backend.Serialize(params.RiskMultiplier)
	if err != nil {
		return fmt.Errorf("serialize risk multiplier: %w", err)
	}
	ceiling, err := s.backend.Serialize(params.CreditCeiling)
	if err != nil {
		return fmt.Errorf("serialize credit ceiling: %w", err)
	}

	query := `
		INSERT INTO scoring_parameters (id, base_score, risk_multiplier, credit_ceiling, active, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET base_score      = EXCLUDED.base_score,
		    risk_multiplier = EXCLUDED.risk_multiplier,
		    credit_ceiling  = EXCLUDED.credit_ceiling,
		    active          = EXCLUDED.active,
		    updated_at      = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, base, multiplier, ceiling, params.Active, params.UpdatedAt); err != nil {
		return fmt.Errorf("save scoring parameters: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetParameters(ctx context.Context) (*models.ModelParameters, error) {
	query := `
		SELECT base_score, risk_multiplier, credit_ceiling, active, updated_at
		FROM scoring_parameters
		WHERE id = 1
	`
	var (
		params              models.ModelParameters
		base, mult, ceiling []byte
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&base, &mult, &ceiling, &params.Active, &params.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get scoring parameters: %w", err)
	}

	if params.BaseScore, err = s.backend.Deserialize(base); err != nil {
		return nil, fmt.Errorf("deserialize base score: %w", err)
	}
	if params.RiskMultiplier, err = s.backend.Deserialize(mult); err != nil {
		return nil, fmt.Errorf("deserialize risk multiplier: %w", err)
	}
	if params.CreditCeiling, err = s.backend.Deserialize(ceiling); err != nil {
		return nil, fmt.Errorf("deserialize credit ceiling: %w", err)
	}
	return &params, nil
}
