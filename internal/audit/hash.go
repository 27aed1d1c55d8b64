package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// computeHash chains r to its predecessor. JSON snapshots are canonicalized
// first so the hash survives a round trip through a JSONB column.
func computeHash(r *Record) (string, error) {
	oldData, err := canonicalJSON(r.OldData)
	if err != nil {
		return "", err
	}
	newData, err := canonicalJSON(r.NewData)
	if err != nil {
		return "", err
	}

	fields := []string{
		r.PrevHash,
		strconv.FormatInt(r.Seq, 10),
		r.ID,
		deref(r.ActorID),
		string(r.Action),
		r.TableName,
		r.RecordID,
		oldData,
		newData,
		deref(r.IPAddress),
		r.RequestID,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON re-encodes raw with sorted object keys, no insignificant
// whitespace and numbers kept as written.
func canonicalJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// seal fills in the chain fields of r given the previous record's hash.
// CreatedAt is truncated to the microsecond precision PostgreSQL stores.
func seal(r *Record, prevHash string) error {
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Microsecond)
	r.PrevHash = prevHash
	hash, err := computeHash(r)
	if err != nil {
		return err
	}
	r.Hash = hash
	return nil
}
