package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

// TxManager runs a function inside one unit of work. Everything fn does
// through repositories that honour the context commits or rolls back
// together. Nested calls join the outer unit of work.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlTxKey struct{}

// SQLTxManager runs units of work as READ COMMITTED PostgreSQL transactions.
type SQLTxManager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLTxManager creates a SQLTxManager.
func NewSQLTxManager(db *sql.DB, logger *slog.Logger) *SQLTxManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLTxManager{db: db, logger: logger}
}

// WithinTx implements TxManager.
func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			m.logger.Warn("failed to rollback transaction", slog.String("error", err.Error()))
		}
	}()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Conn returns the transaction carried by ctx, or fallback outside one.
func Conn(ctx context.Context, fallback *sql.DB) Executor {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return fallback
}

type memTxKey struct{}

type memTx struct {
	undo []func()
}

// MemoryTxManager gives the in-memory repositories transactional behaviour:
// units of work run one at a time and registered undo steps replay in
// reverse order when fn fails.
type MemoryTxManager struct {
	mu sync.Mutex
}

// NewMemoryTxManager creates a MemoryTxManager.
func NewMemoryTxManager() *MemoryTxManager {
	return &MemoryTxManager{}
}

// WithinTx implements TxManager.
func (m *MemoryTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(context.WithValue(ctx, memTxKey{}, tx))
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// OnRollback registers undo to run if the enclosing in-memory unit of work
// fails. Outside one it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}
