package store

import (
	"context"
	"slices"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is a concurrency-safe in-memory Store. Records are kept in a map
// keyed by id with a separate slice holding insertion order.
type MemStore struct {
	mu       sync.RWMutex
	records  map[string]Record
	orderIDs []string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

func (s *MemStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		s.orderIDs = append(s.orderIDs, rec.ID)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemStore) ListByUser(_ context.Context, userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, id := range slices.Backward(s.orderIDs) {
		rec := s.records[id]
		if rec.UserID != userID {
			continue
		}
		out = append(out, cloneRecord(rec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
