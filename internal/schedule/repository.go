package schedule

import (
	"context"
	"sort"
	"sync"

	"github.com/onnwee/timeguard/internal/db"
)

// Repository defines the interface for schedule data operations.
type Repository interface {
	// List returns entries ordered by start time. An empty principalID
	// returns every entry.
	List(ctx context.Context, principalID string) ([]*Entry, error)

	// GetByID retrieves an entry. Returns ErrScheduleNotFound if absent.
	GetByID(ctx context.Context, id string) (*Entry, error)

	Insert(ctx context.Context, e *Entry) error
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryRepository creates a new in-memory schedule repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]*Entry)}
}

// List implements Repository.
func (r *InMemoryRepository) List(_ context.Context, principalID string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries {
		if principalID != "" && e.PrincipalID != principalID {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	c := *e
	return &c, nil
}

// Insert implements Repository.
func (r *InMemoryRepository) Insert(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *e
	r.entries[e.ID] = &c

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.entries, e.ID)
	})
	return nil
}

// Update implements Repository.
func (r *InMemoryRepository) Update(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.entries[e.ID]
	if !ok {
		return ErrScheduleNotFound
	}
	c := *e
	r.entries[e.ID] = &c

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries[prev.ID] = prev
	})
	return nil
}

// Delete implements Repository.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.entries[id]
	if !ok {
		return ErrScheduleNotFound
	}
	delete(r.entries, id)

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries[prev.ID] = prev
	})
	return nil
}
