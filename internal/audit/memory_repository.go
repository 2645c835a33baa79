package audit

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryRepository builds an in-memory audit trail for testing and for
// running without a database.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Insert(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memoryRepository) RecentByPhone(_ context.Context, phone string, limit int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Event
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].Phone == phone {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}
