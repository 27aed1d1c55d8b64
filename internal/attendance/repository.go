package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/onnwee/timeguard/internal/db"
)

// Repository defines the interface for clock event storage. There is no
// update or delete.
type Repository interface {
	Insert(ctx context.Context, e *Event) error

	// ListByPrincipal returns the principal's events, newest first.
	ListByPrincipal(ctx context.Context, principalID string) ([]*Event, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events []*Event
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert implements Repository.
func (r *InMemoryRepository) Insert(ctx context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *e
	r.events = append(r.events, &c)

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := len(r.events) - 1; i >= 0; i-- {
			if r.events[i].ID == e.ID {
				r.events = append(r.events[:i], r.events[i+1:]...)
				return
			}
		}
	})
	return nil
}

// ListByPrincipal implements Repository.
func (r *InMemoryRepository) ListByPrincipal(_ context.Context, principalID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Event{}
	for _, e := range r.events {
		if e.PrincipalID == principalID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Count returns the number of stored events.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
