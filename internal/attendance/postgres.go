package attendance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/geo"
	"github.com/onnwee/timeguard/internal/tracing"
)

const eventColumns = `id, user_id, entry_type, "timestamp", ip_address, device_info, latitude, longitude, notes, created_at`

// PostgresRepository implements Repository on the time_entries table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Insert implements Repository.
func (r *PostgresRepository) Insert(ctx context.Context, e *Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO time_entries (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.PrincipalID, e.Type, e.Timestamp, e.IPAddress, string(e.DeviceInfo),
		e.Latitude, e.Longitude, e.Notes, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert time entry: %w", err)
	}
	return nil
}

// ListByPrincipal implements Repository.
func (r *PostgresRepository) ListByPrincipal(ctx context.Context, principalID string) (out []*Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, Table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+eventColumns+` FROM time_entries
		WHERE user_id::text = $1
		ORDER BY "timestamp" DESC, id`, db.CanonicalID(principalID))
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	out = []*Event{}
	for rows.Next() {
		var (
			e          Event
			deviceInfo []byte
			lat        *geo.Latitude
			lng        *geo.Longitude
			notes      sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.PrincipalID, &e.Type, &e.Timestamp, &e.IPAddress, &deviceInfo,
			&lat, &lng, &notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		e.DeviceInfo = deviceInfo
		e.Latitude = lat
		e.Longitude = lng
		if notes.Valid {
			e.Notes = &notes.String
		}
		e.Timestamp = e.Timestamp.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
