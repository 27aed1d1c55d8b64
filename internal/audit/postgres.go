package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/tracing"
)

// chainLockID is the advisory lock key that serializes appends so every
// record sees the committed head of the chain.
const chainLockID = 42071001

const recordColumns = `id, seq, user_id, action, table_name, record_id, old_data, new_data,
	ip_address, request_id, created_at, prev_hash, hash`

// PostgresRepository implements Repository on the audit_log table.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn, now: time.Now}
}

// Append implements Repository. It must run inside db.TxManager.WithinTx so
// the advisory lock is held until the mutation commits.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) (rec *Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_log", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	ex := db.Conn(ctx, r.db)
	if _, err := ex.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockID); err != nil {
		return nil, fmt.Errorf("failed to lock audit chain: %w", err)
	}

	var (
		lastSeq  int64
		prevHash string
	)
	err = ex.QueryRowContext(ctx, `SELECT seq, hash FROM audit_log ORDER BY seq DESC LIMIT 1`).Scan(&lastSeq, &prevHash)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read audit chain head: %w", err)
	}

	rec = newRecord(entry, r.now())
	rec.Seq = lastSeq + 1
	if err := seal(rec, prevHash); err != nil {
		return nil, err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO audit_log (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.Seq, rec.ActorID, rec.Action, rec.TableName, rec.RecordID,
		nullJSON(rec.OldData), nullJSON(rec.NewData), rec.IPAddress, rec.RequestID,
		rec.CreatedAt, rec.PrevHash, rec.Hash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit record: %w", err)
	}
	return rec, nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, f Filter) (recs []*Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_log", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.TableName != "" {
		add("table_name = $%d", f.TableName)
	}
	if f.RecordID != "" {
		add("record_id = $%d", db.CanonicalID(f.RecordID))
	}
	if f.ActorID != "" {
		add("user_id::text = $%d", db.CanonicalID(f.ActorID))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	query := `SELECT ` + recordColumns + ` FROM audit_log`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY seq DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return r.query(ctx, query, args...)
}

// ChainPage implements Repository.
func (r *PostgresRepository) ChainPage(ctx context.Context, afterSeq int64, limit int) (recs []*Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_log", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	return r.query(ctx, `SELECT `+recordColumns+` FROM audit_log
		WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, afterSeq, limit)
}

// Chain returns every record in ascending sequence order.
func (r *PostgresRepository) Chain(ctx context.Context) (recs []*Record, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_log", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	return r.query(ctx, `SELECT `+recordColumns+` FROM audit_log ORDER BY seq ASC`)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			rec              Record
			actor, ip        sql.NullString
			oldData, newData []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Seq, &actor, &rec.Action, &rec.TableName, &rec.RecordID,
			&oldData, &newData, &ip, &rec.RequestID, &rec.CreatedAt, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if actor.Valid {
			rec.ActorID = &actor.String
		}
		if ip.Valid {
			rec.IPAddress = &ip.String
		}
		rec.OldData = oldData
		rec.NewData = newData
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
