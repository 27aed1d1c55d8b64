package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/tracing"
)

const scheduleColumns = `id, user_id, start_time, end_time, created_by, created_at, updated_at`

// PostgresRepository implements Repository on the schedules table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func mapWriteError(err error) error {
	switch {
	case db.IsForeignKeyViolation(err):
		return ErrUnknownPrincipal
	case db.IsCheckViolation(err):
		return ErrInvalidRange
	}
	return fmt.Errorf("failed to write schedule: %w", err)
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, principalID string) (out []*Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	var args []any
	if principalID != "" {
		query += ` WHERE user_id::text = $1`
		args = append(args, db.CanonicalID(principalID))
	}
	query += ` ORDER BY start_time, id`

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (e *Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	e, err = scanEntry(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id::text = $1`, db.CanonicalID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return e, err
}

// Insert implements Repository.
func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PrincipalID, e.StartTime, e.EndTime, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, e *Entry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE schedules SET user_id = $2, start_time = $3, end_time = $4, updated_at = $5
		WHERE id = $1`,
		e.ID, e.PrincipalID, e.StartTime, e.EndTime, e.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM schedules WHERE id::text = $1`, db.CanonicalID(id))
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	if err := s.Scan(&e.ID, &e.PrincipalID, &e.StartTime, &e.EndTime, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
