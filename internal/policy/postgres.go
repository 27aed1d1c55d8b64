package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/tracing"
)

const (
	ipColumns    = `id, host(ip_address), description, created_by, created_at, updated_at`
	fenceColumns = `id, name, latitude, longitude, radius_meters, created_by, created_at, updated_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// PostgresIPRepository implements IPRepository on the ip_whitelist table.
type PostgresIPRepository struct {
	db *sql.DB
}

// NewPostgresIPRepository creates a PostgresIPRepository.
func NewPostgresIPRepository(conn *sql.DB) *PostgresIPRepository {
	return &PostgresIPRepository{db: conn}
}

// List implements IPRepository.
func (r *PostgresIPRepository) List(ctx context.Context) (out []*IPEntry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, IPTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+ipColumns+` FROM ip_whitelist ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip allowlist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanIPEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByID implements IPRepository.
func (r *PostgresIPRepository) GetByID(ctx context.Context, id string) (e *IPEntry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, IPTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	e, err = scanIPEntry(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+ipColumns+` FROM ip_whitelist WHERE id::text = $1`, db.CanonicalID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIPNotFound
	}
	return e, err
}

// Insert implements IPRepository.
func (r *PostgresIPRepository) Insert(ctx context.Context, e *IPEntry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, IPTable, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO ip_whitelist (id, ip_address, description, created_by, created_at, updated_at)
		VALUES ($1, $2::inet, $3, $4, $5, $6)`,
		e.ID, e.IPAddress, e.Description, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateIP
	}
	if err != nil {
		return fmt.Errorf("failed to insert ip allowlist entry: %w", err)
	}
	return nil
}

// Update implements IPRepository.
func (r *PostgresIPRepository) Update(ctx context.Context, e *IPEntry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, IPTable, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE ip_whitelist SET ip_address = $2::inet, description = $3, updated_at = $4
		WHERE id = $1`,
		e.ID, e.IPAddress, e.Description, e.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateIP
	}
	if err != nil {
		return fmt.Errorf("failed to update ip allowlist entry: %w", err)
	}
	return requireRow(res, ErrIPNotFound)
}

// Delete implements IPRepository.
func (r *PostgresIPRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, IPTable, tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM ip_whitelist WHERE id::text = $1`, db.CanonicalID(id))
	if err != nil {
		return fmt.Errorf("failed to delete ip allowlist entry: %w", err)
	}
	return requireRow(res, ErrIPNotFound)
}

func scanIPEntry(s scanner) (*IPEntry, error) {
	var e IPEntry
	if err := s.Scan(&e.ID, &e.IPAddress, &e.Description, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ip allowlist entry: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

// PostgresFenceRepository implements FenceRepository on the geo_fences table.
type PostgresFenceRepository struct {
	db *sql.DB
}

// NewPostgresFenceRepository creates a PostgresFenceRepository.
func NewPostgresFenceRepository(conn *sql.DB) *PostgresFenceRepository {
	return &PostgresFenceRepository{db: conn}
}

// List implements FenceRepository.
func (r *PostgresFenceRepository) List(ctx context.Context) (out []*GeoFence, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, FenceTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+fenceColumns+` FROM geo_fences ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query geo-fences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetByID implements FenceRepository.
func (r *PostgresFenceRepository) GetByID(ctx context.Context, id string) (f *GeoFence, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, FenceTable, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	f, err = scanFence(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+fenceColumns+` FROM geo_fences WHERE id::text = $1`, db.CanonicalID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFenceNotFound
	}
	return f, err
}

// Insert implements FenceRepository.
func (r *PostgresFenceRepository) Insert(ctx context.Context, f *GeoFence) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, FenceTable, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO geo_fences (`+fenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.Name, f.Latitude, f.Longitude, f.RadiusMeters, f.CreatedBy, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert geo-fence: %w", err)
	}
	return nil
}

// Update implements FenceRepository.
func (r *PostgresFenceRepository) Update(ctx context.Context, f *GeoFence) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, FenceTable, tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE geo_fences
		SET name = $2, latitude = $3, longitude = $4, radius_meters = $5, updated_at = $6
		WHERE id = $1`,
		f.ID, f.Name, f.Latitude, f.Longitude, f.RadiusMeters, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update geo-fence: %w", err)
	}
	return requireRow(res, ErrFenceNotFound)
}

// Delete implements FenceRepository.
func (r *PostgresFenceRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, FenceTable, tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM geo_fences WHERE id::text = $1`, db.CanonicalID(id))
	if err != nil {
		return fmt.Errorf("failed to delete geo-fence: %w", err)
	}
	return requireRow(res, ErrFenceNotFound)
}

func scanFence(s scanner) (*GeoFence, error) {
	var f GeoFence
	if err := s.Scan(&f.ID, &f.Name, &f.Latitude, &f.Longitude, &f.RadiusMeters, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan geo-fence: %w", err)
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
