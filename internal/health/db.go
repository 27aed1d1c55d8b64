package health

import (
	"context"
	"database/sql"
	"fmt"
)

// DBChecker implements health checking for SQL databases.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db: db,
	}
}

// HealthCheck pings the database and confirms the audit log table is
// reachable, since no mutation can commit without it.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return err
	}
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT 1 FROM audit_log LIMIT 1`).Scan(&n); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("audit log unavailable: %w", err)
	}
	return nil
}
