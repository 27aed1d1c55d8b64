//go:build integration

// Package dbtest provisions a migrated PostgreSQL database for integration
// tests. It uses DATABASE_URL when set and otherwise starts a disposable
// container through testcontainers.
//
// Run with: go test -tags=integration ./...
package dbtest

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/migrations"
)

// Tables in truncation order.
var tables = []string{"audit_log", "time_entries", "schedules", "geo_fences", "ip_whitelist", "profiles"}

// New returns a connection to an empty, fully migrated database.
func New(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		ctr, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("timeguard"),
			postgres.WithUsername("timeguard"),
			postgres.WithPassword("timeguard"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(ctr); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})
		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get connection string: %v", err)
		}
	}

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(ctx, conn, migrations.FS, slog.Default()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	for _, table := range tables {
		if _, err := conn.ExecContext(ctx, "TRUNCATE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
	return conn
}
