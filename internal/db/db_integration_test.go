//go:build integration

package db_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/db/dbtest"
	"github.com/onnwee/timeguard/migrations"
)

func insertProfile(t *testing.T, ctx context.Context, ex db.Executor, role string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO profiles (id, email, role) VALUES ($1, $2, $3)`, id, id+"@example.com", role,
	); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return id
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := dbtest.New(t)
	if err := db.Migrate(context.Background(), conn, migrations.FS, slog.Default()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestSQLTxManager_RollbackAndCommit(t *testing.T) {
	conn := dbtest.New(t)
	tm := db.NewSQLTxManager(conn, slog.Default())
	ctx := context.Background()
	boom := errors.New("boom")

	var rolledBack string
	err := tm.WithinTx(ctx, func(ctx context.Context) error {
		rolledBack = insertProfile(t, ctx, db.Conn(ctx, conn), "employee")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v", err)
	}

	var committed string
	if err := tm.WithinTx(ctx, func(ctx context.Context) error {
		committed = insertProfile(t, ctx, db.Conn(ctx, conn), "admin")
		return nil
	}); err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}

	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE id = $1`, rolledBack).Scan(&n); err != nil || n != 0 {
		t.Errorf("rolled back profile count = %d, err = %v", n, err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE id = $1`, committed).Scan(&n); err != nil || n != 1 {
		t.Errorf("committed profile count = %d, err = %v", n, err)
	}
}

func TestSchemaConstraints(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	admin := insertProfile(t, ctx, conn, "admin")

	_, err := conn.ExecContext(ctx, `INSERT INTO ip_whitelist (ip_address, created_by) VALUES ('10.0.0.1', $1)`, admin)
	if err != nil {
		t.Fatalf("insert ip: %v", err)
	}
	_, err = conn.ExecContext(ctx, `INSERT INTO ip_whitelist (ip_address, created_by) VALUES ('10.0.0.1', $1)`, admin)
	if !db.IsUniqueViolation(err) {
		t.Errorf("duplicate ip error = %v, want unique violation", err)
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO geo_fences (name, latitude, longitude, radius_meters, created_by) VALUES ('x', 0, 0, 0, $1)`, admin)
	if !db.IsCheckViolation(err) {
		t.Errorf("zero radius error = %v, want check violation", err)
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO time_entries (user_id, entry_type) VALUES ($1, 'clock_in')`, uuid.NewString())
	if !db.IsForeignKeyViolation(err) {
		t.Errorf("unknown user error = %v, want foreign key violation", err)
	}
}

func TestProfileDeleteCascades(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	admin := insertProfile(t, ctx, conn, "admin")
	emp := insertProfile(t, ctx, conn, "employee")

	if _, err := conn.ExecContext(ctx, `INSERT INTO time_entries (user_id, entry_type) VALUES ($1, 'clock_in')`, emp); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	if _, err := conn.ExecContext(ctx,
		`INSERT INTO schedules (user_id, start_time, end_time, created_by) VALUES ($1, NOW(), NOW() + INTERVAL '8 hours', $2)`,
		emp, admin); err != nil {
		t.Fatalf("insert schedule: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, emp); err != nil {
		t.Fatalf("delete profile: %v", err)
	}

	var entries, schedules int
	_ = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_entries WHERE user_id = $1`, emp).Scan(&entries)
	_ = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE user_id = $1`, emp).Scan(&schedules)
	if entries != 0 || schedules != 0 {
		t.Errorf("cascade left %d entries and %d schedules", entries, schedules)
	}
}

func TestCoordinatePrecisionStored(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	emp := insertProfile(t, ctx, conn, "employee")

	var lat, lng string
	err := conn.QueryRowContext(ctx, `
		INSERT INTO time_entries (user_id, entry_type, latitude, longitude)
		VALUES ($1, 'clock_in', '12.34567891', '-98.7654321')
		RETURNING latitude::text, longitude::text`, emp).Scan(&lat, &lng)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if lat != "12.34567891" || lng != "-98.7654321" {
		t.Errorf("stored (%s, %s)", lat, lng)
	}
}
