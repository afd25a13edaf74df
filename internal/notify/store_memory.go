package notify

import (
	"context"
	"sync"
)

// InMemoryStore keeps the outbox in memory for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	nextSeq uint64
}

// NewInMemoryStore constructs an empty in-memory outbox.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextSeq: 1}
}

func (s *InMemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Sequence = s.nextSeq
	s.nextSeq++
	copyRecord := *record
	s.records = append(s.records, &copyRecord)
	return nil
}

func (s *InMemoryStore) FetchUnprocessed(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, record := range s.records {
		if record.Processed {
			continue
		}
		copyRecord := *record
		out = append(out, &copyRecord)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, sequences ...uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uint64]bool, len(sequences))
	for _, seq := range sequences {
		marked[seq] = true
	}
	for _, record := range s.records {
		if marked[record.Sequence] {
			record.Processed = true
		}
	}
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, record := range s.records {
		if record.EntityID != entityID {
			continue
		}
		copyRecord := *record
		out = append(out, &copyRecord)
	}
	return out, nil
}

// All returns every record in sequence order. Test helper.
func (s *InMemoryStore) All() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		copyRecord := *record
		out = append(out, &copyRecord)
	}
	return out
}
