// Package memory provides an in-memory dlq.Store for tests and single-process
// use.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
)

// compile-time interface check.
var _ dlq.Store = (*Store)(nil)

// Store is an in-memory implementation of dlq.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*dlq.Entry // keyed by ID string
	closed  bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entries: make(map[string]*dlq.Entry),
	}
}

// Push records an exhausted delivery.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dlq.ErrStoreClosed
	}
	s.entries[entry.ID.String()] = cloneEntry(entry)
	return nil
}

// List returns DLQ entries, newest first, optionally filtered.
func (s *Store) List(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, dlq.ErrStoreClosed
	}

	result := make([]*dlq.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !opts.Matches(e) {
			continue
		}
		result = append(result, cloneEntry(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// Get returns a DLQ entry by ID.
func (s *Store) Get(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, dlq.ErrStoreClosed
	}

	e, ok := s.entries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrNotFound
	}
	return cloneEntry(e), nil
}

// MarkReplayed stamps the entry as successfully redelivered.
func (s *Store) MarkReplayed(_ context.Context, dlqID id.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dlq.ErrStoreClosed
	}

	e, ok := s.entries[dlqID.String()]
	if !ok {
		return dlq.ErrNotFound
	}
	at = at.UTC()
	e.ReplayedAt = &at
	e.UpdatedAt = at
	return nil
}

// Purge deletes DLQ entries that failed before the threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, dlq.ErrStoreClosed
	}

	var count int64
	for k, e := range s.entries {
		if e.FailedAt.Before(before) {
			delete(s.entries, k)
			count++
		}
	}
	return count, nil
}

// Count returns the total number of DLQ entries.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, dlq.ErrStoreClosed
	}
	return int64(len(s.entries)), nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// cloneEntry copies e so callers never share the payload buffer or the
// replay timestamp with the store.
func cloneEntry(e *dlq.Entry) *dlq.Entry {
	cp := *e
	cp.Payload = bytes.Clone(e.Payload)
	if e.ReplayedAt != nil {
		at := *e.ReplayedAt
		cp.ReplayedAt = &at
	}
	return &cp
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return []*T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
