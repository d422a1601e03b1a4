package tickets

import (
	"context"

	"github.com/sasha-s/go-deadlock"
)

// MemorySink keeps tickets in memory. It is the default sink for
// demos and tests.
type MemorySink struct {
	mu   deadlock.RWMutex
	byID map[string]Ticket
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{byID: make(map[string]Ticket)}
}

// Create implements Sink.
func (s *MemorySink) Create(ctx context.Context, t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[t.ID]; exists {
		return ErrDuplicate
	}
	s.byID[t.ID] = t
	return nil
}

// Get returns the ticket with the given ID.
func (s *MemorySink) Get(id string) (Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

// Count returns the number of recorded tickets.
func (s *MemorySink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
