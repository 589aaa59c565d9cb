package preferences

import (
	"context"
	"sync"
)

// Store reads preference profiles. Get returns ErrNotFound for users without
// a saved profile; callers substitute Default.
type Store interface {
	Get(ctx context.Context, userID string) (Preferences, error)
}

// Saver persists preference profiles.
type Saver interface {
	Save(ctx context.Context, p Preferences) error
}

// MemoryStore keeps profiles in a map. It is used in tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

// NewMemoryStore creates a store seeded with the given profiles.
func NewMemoryStore(seed ...Preferences) *MemoryStore {
	s := &MemoryStore{prefs: make(map[string]Preferences, len(seed))}
	for _, p := range seed {
		s.prefs[p.UserID] = p.Clone()
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[userID]
	if !ok {
		return Preferences{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, p Preferences) error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.UserID] = p.Clone()
	return nil
}
