package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists the outbox in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE notifications (
//	    sequence    BIGSERIAL PRIMARY KEY,
//	    operation   TEXT        NOT NULL,
//	    entity_id   TEXT        NOT NULL,
//	    outcome     TEXT        NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    processed   BOOLEAN     NOT NULL DEFAULT FALSE
//	);
//	CREATE INDEX notifications_unprocessed_idx ON notifications (sequence) WHERE NOT processed;
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("notification record is required")
	}
	query := `
		INSERT INTO notifications (operation, entity_id, outcome, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING sequence
	`
	err := s.db.QueryRowContext(ctx, query,
		record.Operation,
		record.EntityID,
		record.Outcome,
		record.Timestamp,
	).Scan(&record.Sequence)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchUnprocessed(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT sequence, operation, entity_id, outcome, occurred_at, processed
		FROM notifications
		WHERE NOT processed
		ORDER BY sequence
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed notifications: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, sequences ...uint64) error {
	if len(sequences) == 0 {
		return nil
	}
	query := `UPDATE notifications SET processed = TRUE WHERE sequence = ANY($1)`
	seqs := make([]int64, len(sequences))
	for i, seq := range sequences {
		seqs[i] = int64(seq)
	}
	if _, err := s.db.ExecContext(ctx, query, seqs); err != nil {
		return fmt.Errorf("mark notifications processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityID string) ([]*Record, error) {
	query := `
		SELECT sequence, operation, entity_id, outcome, occurred_at, processed
		FROM notifications
		WHERE entity_id = $1
		ORDER BY sequence
	`
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		record := &Record{}
		if err := rows.Scan(
			&record.Sequence,
			&record.Operation,
			&record.EntityID,
			&record.Outcome,
			&record.Timestamp,
			&record.Processed,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return records, nil
}
