package notify

import (
	"context"
	"log/slog"
	"time"
)

// Publisher appends notification records to the outbox. Services call Emit
// inside the same logical operation that commits the transition, so the
// record exists iff the transition does.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// NewPublisher constructs a publisher over the given outbox store.
func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit appends one record. A failed append is logged but never fails the
// operation that produced it; the transition itself has already been decided.
func (p *Publisher) Emit(ctx context.Context, operation, entityID, outcome string) {
	record := &Record{
		Operation: operation,
		EntityID:  entityID,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
	if err := p.store.Append(ctx, record); err != nil && p.logger != nil {
		p.logger.ErrorContext(ctx, "notification append failed",
			"operation", operation,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// ListByEntity returns the ordered notification history for one entity.
func (p *Publisher) ListByEntity(ctx context.Context, entityID string) ([]*Record, error) {
	return p.store.ListByEntity(ctx, entityID)
}
