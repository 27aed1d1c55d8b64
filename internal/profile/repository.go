package profile

import (
	"context"
	"sort"
	"sync"

	"github.com/onnwee/timeguard/internal/db"
)

// Repository defines the interface for profile data operations.
type Repository interface {
	// Insert stores a new profile. Returns ErrDuplicateProfile or
	// ErrDuplicateEmployeeID on uniqueness violations.
	Insert(ctx context.Context, p *Profile) error

	// Update replaces an existing profile. Returns ErrProfileNotFound if absent.
	Update(ctx context.Context, p *Profile) error

	// GetByID retrieves a profile by its ID.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// List returns every profile ordered by creation time.
	List(ctx context.Context) ([]*Profile, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{profiles: make(map[string]*Profile)}
}

// employeeIDTaken must be called with mu held.
func (r *InMemoryRepository) employeeIDTaken(p *Profile) bool {
	if p.EmployeeID == nil {
		return false
	}
	for _, other := range r.profiles {
		if other.ID != p.ID && other.EmployeeID != nil && *other.EmployeeID == *p.EmployeeID {
			return true
		}
	}
	return false
}

// Insert implements Repository.
func (r *InMemoryRepository) Insert(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.ID]; exists {
		return ErrDuplicateProfile
	}
	if r.employeeIDTaken(p) {
		return ErrDuplicateEmployeeID
	}
	r.profiles[p.ID] = p.clone()

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.profiles, p.ID)
	})
	return nil
}

// Update implements Repository.
func (r *InMemoryRepository) Update(ctx context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.profiles[p.ID]
	if !exists {
		return ErrProfileNotFound
	}
	if r.employeeIDTaken(p) {
		return ErrDuplicateEmployeeID
	}
	r.profiles[p.ID] = p.clone()

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.profiles[prev.ID] = prev
	})
	return nil
}

// GetByID implements Repository.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.clone(), nil
}

// List implements Repository.
func (r *InMemoryRepository) List(_ context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
