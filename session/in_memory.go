package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentfloor/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.SessionState
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.SessionState)}
}

// Create stores a new session. It fails if the id is taken.
func (s *InMemoryStore) Create(state *core.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[state.ID]; ok {
		return fmt.Errorf("%w: %s", core.ErrSessionExists, state.ID)
	}
	s.sessions[state.ID] = state.Clone()
	return nil
}

// Get returns a clone of the stored session.
func (s *InMemoryStore) Get(sessionID string) (*core.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return state.Clone(), nil
}

// Save replaces the stored session with a clone of state. The phase change
// relative to the stored copy must be legal.
func (s *InMemoryStore) Save(state *core.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[state.ID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, state.ID)
	}
	if !CanTransition(cur.Phase, state.Phase) {
		return fmt.Errorf("%w: illegal phase change %s → %s", core.ErrSessionCorrupted, cur.Phase, state.Phase)
	}
	if len(state.History) < len(cur.History) {
		return fmt.Errorf("%w: history shrank from %d to %d", core.ErrSessionCorrupted, len(cur.History), len(state.History))
	}
	s.sessions[state.ID] = state.Clone()
	return nil
}

// List returns the ids of all stored sessions in lexical order.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
