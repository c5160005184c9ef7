package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process session backend used when Redis is not
// configured. Suitable for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore creates an in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// WithClock overrides the store clock, for tests
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Get returns the record for id; expired records behave as missing
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()

	if !ok || record.Expired(s.now()) {
		return nil, ErrNotFound
	}

	copied := *record
	return &copied, nil
}

// Put creates or overwrites a record
func (s *MemoryStore) Put(ctx context.Context, record *Record) error {
	copied := *record
	s.mu.Lock()
	s.records[record.ID] = &copied
	s.mu.Unlock()
	return nil
}

// Delete removes a record; deleting a missing record is not an error
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

// DeleteExpired sweeps records past their absolute lifetime
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for id, record := range s.records {
		if record.Expired(now) {
			delete(s.records, id)
			swept++
		}
	}
	return swept, nil
}

// Len reports the number of stored records, including expired ones not yet
// swept. Used to assert store contents in tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
