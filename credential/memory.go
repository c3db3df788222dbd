package credential

import (
	"context"
	"sync"
)

type pair struct {
	refresh string
	access  string
}

// MemoryStore keeps credentials in process memory. The zero value is not usable;
// construct with NewMemoryStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]pair
	sealer   *Sealer
}

// NewMemoryStore returns an empty store. A nil sealer stores plaintext values.
func NewMemoryStore(sealer *Sealer) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]pair),
		sealer:   sealer,
	}
}

// Get returns the current value of kind for the session.
func (s *MemoryStore) Get(ctx context.Context, sessionID string, kind Kind) (string, bool, error) {
	if err := checkArgs(sessionID, kind); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	p, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	raw := p.refresh
	if kind == KindAccess {
		raw = p.access
	}
	if raw == "" {
		return "", false, nil
	}

	value, err := s.sealer.open(sessionID, kind, raw)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set replaces the value of kind. An empty value clears it.
func (s *MemoryStore) Set(ctx context.Context, sessionID string, kind Kind, value string) error {
	if err := checkArgs(sessionID, kind); err != nil {
		return err
	}
	if value == "" {
		return s.Clear(ctx, sessionID, kind)
	}

	sealed, err := s.sealer.seal(sessionID, kind, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.sessions[sessionID]
	if kind == KindRefresh {
		p.refresh = sealed
	} else {
		p.access = sealed
	}
	s.sessions[sessionID] = p
	return nil
}

// SetPair replaces both credentials in one critical section.
func (s *MemoryStore) SetPair(ctx context.Context, sessionID, refresh, access string) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	var p pair
	var err error
	if refresh != "" {
		if p.refresh, err = s.sealer.seal(sessionID, KindRefresh, refresh); err != nil {
			return err
		}
	}
	if access != "" {
		if p.access, err = s.sealer.seal(sessionID, KindAccess, access); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.refresh == "" && p.access == "" {
		delete(s.sessions, sessionID)
		return nil
	}
	s.sessions[sessionID] = p
	return nil
}

// Clear removes the value of kind, keeping the other credential.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string, kind Kind) error {
	if err := checkArgs(sessionID, kind); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if kind == KindRefresh {
		p.refresh = ""
	} else {
		p.access = ""
	}
	if p.refresh == "" && p.access == "" {
		delete(s.sessions, sessionID)
		return nil
	}
	s.sessions[sessionID] = p
	return nil
}

// ClearAll destroys the session.
func (s *MemoryStore) ClearAll(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions currently hold at least one credential.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
