package session

import (
	"context"
	"errors"
	"sync"
)

var errStorageDown = errors.New("session storage unavailable")

type memoryStore struct {
	mu      sync.RWMutex
	current Session
	failing bool
}

// NewMemoryStore builds an in-memory session store for testing.
func NewMemoryStore() Store {
	return &memoryStore{}
}

// NewFailingStore builds a store whose writes always fail, for exercising
// the controller's no-partial-overwrite guarantees.
func NewFailingStore() Store {
	return &memoryStore{failing: true}
}

func (m *memoryStore) Load(_ context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

func (m *memoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStorageDown
	}
	m.current = s
	return nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStorageDown
	}
	m.current = Session{}
	return nil
}
