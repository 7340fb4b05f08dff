package audit

import (
	"context"
	"sync"

	"github.com/hupe1980/agentfloor/core"
)

// InMemoryStore is a trivial in‑process AuditStore useful for tests,
// examples and the simulator. Records are kept per session in append order
// and copied on write and read.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]core.AuditRecord // sessionID -> records
}

// NewInMemoryStore returns an empty in‑memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]core.AuditRecord)}
}

// Append stores a copy of rec.
func (s *InMemoryStore) Append(ctx context.Context, rec core.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = append(s.records[rec.SessionID], clone(rec))
	return nil
}

// List returns the session's records in append order. The slice is a
// snapshot and safe for caller mutation.
func (s *InMemoryStore) List(ctx context.Context, sessionID string) ([]core.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.records[sessionID]
	out := make([]core.AuditRecord, len(src))
	for i, r := range src {
		out[i] = clone(r)
	}
	return out, nil
}

// Len returns the total number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rs := range s.records {
		n += len(rs)
	}
	return n
}

// Discard is an AuditStore that keeps nothing. It backs the "none" audit
// backend.
type Discard struct{}

// Append drops rec.
func (Discard) Append(ctx context.Context, _ core.AuditRecord) error { return ctx.Err() }

// List always returns no records.
func (Discard) List(ctx context.Context, _ string) ([]core.AuditRecord, error) { return nil, ctx.Err() }
