package store

import (
	"sync"

	"go-session-agent/internal/model"
)

// MemoryStore keeps the session record in process memory. Used in tests and
// when the agent is configured without a session file.
type MemoryStore struct {
	mu      sync.RWMutex
	session *model.SessionData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (*model.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, ErrNotFound
	}

	copied := *s.session
	return &copied, nil
}

func (s *MemoryStore) Set(session *model.SessionData) error {
	if session == nil {
		return model.ErrInvalidInput
	}

	copied := *session

	s.mu.Lock()
	s.session = &copied
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	return nil
}
