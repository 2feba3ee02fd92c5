package notifications

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxPerSession caps how many undrained notifications a session keeps
const DefaultMaxPerSession = 20

// MemoryStore keeps notifications in process memory
type MemoryStore struct {
	queues map[string][]Notification
	now    func() time.Time
	max    int
	mu     sync.Mutex
}

// NewMemoryStore creates an in-memory store keeping at most maxPerSession
// notifications per session; older ones are dropped first
func NewMemoryStore(maxPerSession int) *MemoryStore {
	if maxPerSession <= 0 {
		maxPerSession = DefaultMaxPerSession
	}
	return &MemoryStore{
		queues: make(map[string][]Notification),
		now:    time.Now,
		max:    maxPerSession,
	}
}

// Notify queues n for the session
func (s *MemoryStore) Notify(_ context.Context, sessionID string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := append(s.queues[sessionID], stamp(n, s.now()))
	if len(queue) > s.max {
		queue = queue[len(queue)-s.max:]
	}
	s.queues[sessionID] = queue
	return nil
}

// Drain returns and clears the session's queue
func (s *MemoryStore) Drain(_ context.Context, sessionID string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[sessionID]
	delete(s.queues, sessionID)
	if queue == nil {
		return []Notification{}, nil
	}
	return queue, nil
}
