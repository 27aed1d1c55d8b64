package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*Record
	now  func() time.Time
}

// NewInMemoryRepository creates a new in-memory idempotency repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		keys: make(map[string]*Record),
		now:  time.Now,
	}
}

// Get implements Repository.
func (r *InMemoryRepository) Get(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *rec
	return &cp, nil
}

// Reserve implements Repository.
func (r *InMemoryRepository) Reserve(_ context.Context, rec *Record) error {
	if err := ValidateKey(rec.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[rec.Key]; exists {
		return ErrKeyExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	cp := *rec
	r.keys[rec.Key] = &cp
	return nil
}

// Complete implements Repository.
func (r *InMemoryRepository) Complete(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.keys[rec.Key]
	if !ok {
		return ErrKeyNotFound
	}
	cp := *rec
	cp.CreatedAt = existing.CreatedAt
	r.keys[rec.Key] = &cp
	return nil
}

// Release implements Repository.
func (r *InMemoryRepository) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
	return nil
}

// DeleteOlderThan removes records older than d and returns how many were removed.
func (r *InMemoryRepository) DeleteOlderThan(_ context.Context, d time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-d)
	var deleted int64
	for key, rec := range r.keys {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}
