package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/tracing"
)

const profileColumns = `id, email, display_name, role, employee_id, department, created_at, updated_at`

// PostgresRepository implements Repository on the profiles table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err) {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && strings.Contains(pqErr.Constraint, "employee_id") {
			return ErrDuplicateEmployeeID
		}
		return ErrDuplicateProfile
	}
	return err
}

// Insert implements Repository.
func (r *PostgresRepository) Insert(ctx context.Context, p *Profile) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Email, p.DisplayName, p.Role, p.EmployeeID, p.Department, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, p *Profile) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE profiles
		SET email = $2, display_name = $3, role = $4, employee_id = $5, department = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Email, p.DisplayName, p.Role, p.EmployeeID, p.Department, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (p *Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id::text = $1`, db.CanonicalID(id))
	p, err = scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context) (out []*Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*Profile, error) {
	var (
		p          Profile
		employeeID sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &employeeID, &p.Department, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	if employeeID.Valid {
		p.EmployeeID = &employeeID.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
