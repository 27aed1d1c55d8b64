package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/timeguard/internal/db"
)

// Repository defines the interface for audit log operations.
type Repository interface {
	// Append chains a new record onto the log inside the caller's unit of work.
	Append(ctx context.Context, entry Entry) (*Record, error)

	// List returns records matching f, newest first.
	List(ctx context.Context, f Filter) ([]*Record, error)

	// ChainPage returns up to limit records with seq > afterSeq in ascending
	// sequence order.
	ChainPage(ctx context.Context, afterSeq int64, limit int) ([]*Record, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

// Append implements Repository.
func (r *InMemoryRepository) Append(ctx context.Context, entry Entry) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := newRecord(entry, r.now())
	prevHash := ""
	if n := len(r.records); n > 0 {
		rec.Seq = r.records[n-1].Seq + 1
		prevHash = r.records[n-1].Hash
	} else {
		rec.Seq = 1
	}
	if err := seal(rec, prevHash); err != nil {
		return nil, err
	}
	r.records = append(r.records, rec)

	db.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := len(r.records) - 1; i >= 0; i-- {
			if r.records[i].ID == rec.ID {
				r.records = append(r.records[:i], r.records[i+1:]...)
				return
			}
		}
	})

	// Return a copy to prevent external modification
	out := *rec
	return &out, nil
}

// List implements Repository.
func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Record
	for i := len(r.records) - 1; i >= 0; i-- {
		if !f.Matches(r.records[i]) {
			continue
		}
		rec := *r.records[i]
		results = append(results, &rec)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}
	return results, nil
}

// ChainPage implements Repository.
func (r *InMemoryRepository) ChainPage(_ context.Context, afterSeq int64, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Record
	for _, rec := range r.records {
		if rec.Seq <= afterSeq {
			continue
		}
		c := *rec
		out = append(out, &c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Chain returns every record in ascending sequence order.
func (r *InMemoryRepository) Chain(_ context.Context) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, len(r.records))
	for i, rec := range r.records {
		c := *rec
		out[i] = &c
	}
	return out, nil
}

func newRecord(entry Entry, now time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		TableName: entry.TableName,
		RecordID:  entry.RecordID,
		OldData:   entry.OldData,
		NewData:   entry.NewData,
		IPAddress: entry.IPAddress,
		RequestID: entry.RequestID,
		CreatedAt: now,
	}
}
