package status

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
)

// Store persists delivery attempts. Implementations must make Create and
// Transition atomic per (event_id, channel).
type Store interface {
	// Create inserts a if no record exists for its key. It returns the stored
	// record and whether this call inserted it.
	Create(ctx context.Context, a Attempt) (Attempt, bool, error)
	// Transition applies t if the stored record meets its conditions: status
	// in t.From, due by t.DueBy and at t.Version when those are set. It
	// returns the stored record after the call and whether the update applied.
	// ErrNotFound is returned when no record exists.
	Transition(ctx context.Context, t Transition) (Attempt, bool, error)
	Get(ctx context.Context, eventID string, channel event.Channel) (Attempt, error)
	List(ctx context.Context, eventID string) ([]Attempt, error)
}

type key struct {
	eventID string
	channel event.Channel
}

// MemoryStore is a mutex-guarded Store for tests and single-process runs.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[key]Attempt
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used for CreatedAt and UpdatedAt.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		attempts: make(map[key]Attempt),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, a Attempt) (Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{a.EventID, a.Channel}
	if existing, ok := s.attempts[k]; ok {
		return existing, false, nil
	}
	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	s.attempts[k] = a
	return a, true, nil
}

func (s *MemoryStore) Transition(_ context.Context, t Transition) (Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{t.EventID, t.Channel}
	current, ok := s.attempts[k]
	if !ok {
		return Attempt{}, false, ErrNotFound
	}
	if !t.matches(current) {
		return current, false, nil
	}
	next := t.apply(current, s.now().UTC())
	s.attempts[k] = next
	return next, true, nil
}

func (s *MemoryStore) Get(_ context.Context, eventID string, channel event.Channel) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[key{eventID, channel}]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) List(_ context.Context, eventID string) ([]Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Attempt
	for k, a := range s.attempts {
		if k.eventID == eventID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Attempt) int {
		return channelOrder(a.Channel) - channelOrder(b.Channel)
	})
	return out, nil
}

func channelOrder(ch event.Channel) int {
	if i := slices.Index(event.Channels, ch); i >= 0 {
		return i
	}
	return len(event.Channels)
}
