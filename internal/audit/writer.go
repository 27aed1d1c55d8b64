package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/middleware"
)

// ErrWriteFailed is returned when the audit record for a mutation could not
// be written. The mutation is rolled back with it.
var ErrWriteFailed = fmt.Errorf("audit write failed: %w", apperr.ErrPersistence)

type systemKey struct{}

// AsSystem marks ctx as acting on behalf of the system rather than the
// request principal, e.g. when provisioning a profile on first sign-in.
// Records written under it have a null actor.
func AsSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemKey{}, true)
}

// IsSystem reports whether ctx was marked with AsSystem.
func IsSystem(ctx context.Context) bool {
	v, _ := ctx.Value(systemKey{}).(bool)
	return v
}

// Change describes the row a mutation touched. Old is ignored for inserts
// and New for deletes.
type Change struct {
	RecordID string
	Old      any
	New      any
}

// Writer applies mutations together with their audit record.
type Writer struct {
	repo    Repository
	tm      db.TxManager
	metrics *Metrics
	logger  *slog.Logger
}

// NewWriter creates a Writer. metrics may be nil.
func NewWriter(repo Repository, tm db.TxManager, metrics *Metrics, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{repo: repo, tm: tm, metrics: metrics, logger: logger}
}

// Apply runs mutate and appends the matching audit record in one unit of
// work. If mutate fails its error is returned unchanged; if the audit append
// fails the mutation is rolled back and an error wrapping ErrWriteFailed is
// returned. Actor and origin IP come from ctx.
func (w *Writer) Apply(ctx context.Context, table string, action Action, mutate func(ctx context.Context) (Change, error)) error {
	if !AuditedTables[table] || !action.Valid() {
		return fmt.Errorf("%w: cannot audit %s on %q", ErrWriteFailed, action, table)
	}

	var auditErr error
	err := w.tm.WithinTx(ctx, func(ctx context.Context) error {
		change, err := mutate(ctx)
		if err != nil {
			return err
		}

		entry, err := w.entryFor(ctx, table, action, change)
		if err == nil {
			_, err = w.repo.Append(ctx, entry)
		}
		if err != nil {
			auditErr = err
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		return nil
	})

	if auditErr != nil {
		w.logger.ErrorContext(ctx, "audit write failed, mutation rolled back",
			slog.String("table", table),
			slog.String("action", string(action)),
			slog.String("error", auditErr.Error()))
		if w.metrics != nil {
			w.metrics.IncWriteFailures(table)
		}
		return err
	}
	if err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.IncRecords(table, string(action))
	}
	return nil
}

func (w *Writer) entryFor(ctx context.Context, table string, action Action, change Change) (Entry, error) {
	if change.RecordID == "" {
		return Entry{}, errors.New("change has no record id")
	}
	entry := Entry{
		Action:    action,
		TableName: table,
		RecordID:  change.RecordID,
		RequestID: middleware.GetRequestID(ctx),
	}

	if !IsSystem(ctx) {
		if p, ok := middleware.GetPrincipal(ctx); ok && p.ID != "" {
			id := p.ID
			entry.ActorID = &id
		}
	}
	if ip := middleware.GetClientIP(ctx); ip != "" {
		entry.IPAddress = &ip
	}

	var err error
	if action != ActionInsert {
		if entry.OldData, err = snapshot(change.Old); err != nil {
			return Entry{}, err
		}
	}
	if action != ActionDelete {
		if entry.NewData, err = snapshot(change.New); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, errors.New("missing row snapshot")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row snapshot: %w", err)
	}
	return data, nil
}
