package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

// migrationLockID serializes concurrent Migrate calls across replicas.
const migrationLockID = 727274

// Migrate applies every *.up.sql file in fsys that is not yet recorded in
// schema_migrations, in lexical order, each in its own transaction.
func Migrate(ctx context.Context, conn *sql.DB, fsys fs.FS, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	tm := NewSQLTxManager(conn, logger)
	for _, name := range names {
		version := strings.TrimSuffix(name, ".up.sql")
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		applied := false
		err = tm.WithinTx(ctx, func(ctx context.Context) error {
			ex := Conn(ctx, conn)
			if _, err := ex.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
				return err
			}
			var exists bool
			if err := ex.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
			).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := ex.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			if _, err := ex.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", version, err)
		}
		if applied {
			logger.Info("migration applied", slog.String("version", version))
		}
	}
	return nil
}
