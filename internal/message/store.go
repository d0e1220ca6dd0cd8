package message

import (
	"sync"
	"time"

	"govvault/internal/sentinel"
	"govvault/pkg/domain"
)

// Store keeps per-digest payment state in memory. The service's operation
// lock serializes mutations; the store's own lock makes reads safe from the
// API surface.
type Store struct {
	mu      sync.RWMutex
	records map[domain.Digest]*Record
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{records: make(map[domain.Digest]*Record)}
}

// Status returns the state of a digest.
func (s *Store) Status(digest domain.Digest) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[digest]
	switch {
	case !ok:
		return StatusUnseen
	case rec.ProcessedAt != nil:
		return StatusProcessed
	default:
		return StatusPaid
	}
}

// Record returns the paid record for a digest.
func (s *Store) Record(digest domain.Digest) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[digest]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// PutPaid transitions a digest from Unseen to Paid. Fails if the digest has
// been seen before - this check is the replay-protection exclusion point.
func (s *Store) PutPaid(digest domain.Digest, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[digest]; exists {
		return sentinel.ErrInvalidState
	}
	s.records[digest] = rec
	return nil
}

// Remove deletes a digest record. Used only to roll back a PutPaid whose
// follow-up transfer failed.
func (s *Store) Remove(digest domain.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, digest)
}

// SetProcessed transitions a Paid digest to Processed.
func (s *Store) SetProcessed(digest domain.Digest, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[digest]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.ProcessedAt != nil {
		return sentinel.ErrInvalidState
	}
	rec.ProcessedAt = &at
	return nil
}
