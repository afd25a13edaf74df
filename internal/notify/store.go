package notify

import "context"

// Store is the append-only notification outbox.
//
// Error Contract:
// - Append assigns Sequence and returns nil on success
// - FetchUnprocessed returns records in sequence order
// - MarkProcessed is idempotent
type Store interface {
	Append(ctx context.Context, record *Record) error
	FetchUnprocessed(ctx context.Context, limit int) ([]*Record, error)
	MarkProcessed(ctx context.Context, sequences ...uint64) error
	ListByEntity(ctx context.Context, entityID string) ([]*Record, error)
}
