// Package audit records every mutation of a protected table in an
// append-only, hash-chained log, in the same unit of work as the mutation.
package audit

import (
	"encoding/json"
	"time"
)

// Action is the kind of mutation an audit record describes.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// Tables whose mutations are audited. The audit log itself is not.
var AuditedTables = map[string]bool{
	"profiles":     true,
	"time_entries": true,
	"schedules":    true,
	"ip_whitelist": true,
	"geo_fences":   true,
}

// Record is one row of the audit log.
type Record struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	ActorID   *string         `json:"user_id"`
	Action    Action          `json:"action"`
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	OldData   json.RawMessage `json:"old_data"`
	NewData   json.RawMessage `json:"new_data"`
	IPAddress *string         `json:"ip_address"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	// Tamper detection
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Entry is the input for appending a record. The repository assigns ID,
// Seq, CreatedAt and the hashes.
type Entry struct {
	ActorID   *string
	Action    Action
	TableName string
	RecordID  string
	OldData   json.RawMessage
	NewData   json.RawMessage
	IPAddress *string
	RequestID string
}

// Filter narrows audit queries. Zero fields match everything.
type Filter struct {
	TableName string
	RecordID  string
	ActorID   string
	From      time.Time // inclusive
	To        time.Time // inclusive
	Limit     int       // 0 = no limit
}

// Matches reports whether r satisfies every set field of f.
func (f Filter) Matches(r *Record) bool {
	if f.TableName != "" && r.TableName != f.TableName {
		return false
	}
	if f.RecordID != "" && r.RecordID != f.RecordID {
		return false
	}
	if f.ActorID != "" && (r.ActorID == nil || *r.ActorID != f.ActorID) {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}
