package catalog

import (
	"fmt"
	"iter"
	"sync"
)

// Store is an in-memory, thread-safe set of records that remembers insertion
// order.
type Store struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Record
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]Record)}
}

// Add validates and inserts rec. It returns ErrDuplicateRecord if the ID
// already exists.
func (s *Store) Add(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateRecord, rec.ID)
	}
	s.byID[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

// AddAll drains seq into the store, stopping at the first error.
func (s *Store) AddAll(seq iter.Seq2[Record, error]) (int, error) {
	added := 0
	for rec, err := range seq {
		if err != nil {
			return added, err
		}
		if err := s.Add(rec); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// List returns a snapshot of all records in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.byID[id])
	}
	return res
}
