package policy

import (
	"context"
	"sort"
	"sync"

	"github.com/onnwee/timeguard/internal/db"
)

// IPRepository defines the interface for allowlist data operations.
type IPRepository interface {
	// List returns every entry ordered by creation time.
	List(ctx context.Context) ([]*IPEntry, error)

	// GetByID retrieves an entry. Returns ErrIPNotFound if absent.
	GetByID(ctx context.Context, id string) (*IPEntry, error)

	// Insert stores a new entry. Returns ErrDuplicateIP if the address is taken.
	Insert(ctx context.Context, e *IPEntry) error

	// Update replaces an entry. Returns ErrIPNotFound or ErrDuplicateIP.
	Update(ctx context.Context, e *IPEntry) error

	// Delete removes an entry. Returns ErrIPNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// FenceRepository defines the interface for geo-fence data operations.
type FenceRepository interface {
	List(ctx context.Context) ([]*GeoFence, error)
	GetByID(ctx context.Context, id string) (*GeoFence, error)
	Insert(ctx context.Context, f *GeoFence) error
	Update(ctx context.Context, f *GeoFence) error
	Delete(ctx context.Context, id string) error
}

// InMemoryIPRepository is an in-memory implementation of IPRepository.
// Used for testing and development.
type InMemoryIPRepository struct {
	mu      sync.RWMutex
	entries map[string]*IPEntry
}

// NewInMemoryIPRepository creates a new in-memory allowlist repository.
func NewInMemoryIPRepository() *InMemoryIPRepository {
	return &InMemoryIPRepository{entries: make(map[string]*IPEntry)}
}

// addressTaken must be called with mu held.
func (r *InMemoryIPRepository) addressTaken(e *IPEntry) bool {
	for _, other := range r.entries {
		if other.ID != e.ID && other.IPAddress == e.IPAddress {
			return true
		}
	}
	return false
}

// List implements IPRepository.
func (r *InMemoryIPRepository) List(_ context.Context) ([]*IPEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*IPEntry, 0, len(r.entries))
	for _, e := range r.entries {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID implements IPRepository.
func (r *InMemoryIPRepository) GetByID(_ context.Context, id string) (*IPEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrIPNotFound
	}
	c := *e
	return &c, nil
}

// Insert implements IPRepository.
func (r *InMemoryIPRepository) Insert(ctx context.Context, e *IPEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.addressTaken(e) {
		return ErrDuplicateIP
	}
	c := *e
	r.entries[e.ID] = &c

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.entries, e.ID)
	})
	return nil
}

// Update implements IPRepository.
func (r *InMemoryIPRepository) Update(ctx context.Context, e *IPEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.entries[e.ID]
	if !ok {
		return ErrIPNotFound
	}
	if r.addressTaken(e) {
		return ErrDuplicateIP
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

// Delete implements IPRepository.
func (r *InMemoryIPRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.entries[id]
	if !ok {
		return ErrIPNotFound
	}
	delete(r.entries, id)

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries[prev.ID] = prev
	})
	return nil
}

// InMemoryFenceRepository is an in-memory implementation of FenceRepository.
// Used for testing and development.
type InMemoryFenceRepository struct {
	mu     sync.RWMutex
	fences map[string]*GeoFence
}

// NewInMemoryFenceRepository creates a new in-memory geo-fence repository.
func NewInMemoryFenceRepository() *InMemoryFenceRepository {
	return &InMemoryFenceRepository{fences: make(map[string]*GeoFence)}
}

// List implements FenceRepository.
func (r *InMemoryFenceRepository) List(_ context.Context) ([]*GeoFence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*GeoFence, 0, len(r.fences))
	for _, f := range r.fences {
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID implements FenceRepository.
func (r *InMemoryFenceRepository) GetByID(_ context.Context, id string) (*GeoFence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fences[id]
	if !ok {
		return nil, ErrFenceNotFound
	}
	c := *f
	return &c, nil
}

// Insert implements FenceRepository.
func (r *InMemoryFenceRepository) Insert(ctx context.Context, f *GeoFence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *f
	r.fences[f.ID] = &c

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.fences, f.ID)
	})
	return nil
}

// Update implements FenceRepository.
func (r *InMemoryFenceRepository) Update(ctx context.Context, f *GeoFence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.fences[f.ID]
	if !ok {
		return ErrFenceNotFound
	}
	c := *f
	r.fences[f.ID] = &c

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fences[prev.ID] = prev
	})
	return nil
}

// Delete implements FenceRepository.
func (r *InMemoryFenceRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.fences[id]
	if !ok {
		return ErrFenceNotFound
	}
	delete(r.fences, id)

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fences[prev.ID] = prev
	})
	return nil
}
