// Package idempotency stores the outcome of requests sent with an
// Idempotency-Key header so a retried clock event is answered from the first
// attempt instead of being recorded twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Status constants for idempotency records.
//
// A record is StatusProcessing from the moment the first request reserves the
// key until its response is stored with StatusCompleted.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to reserve a key that is already held.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is invalid.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds maximum length.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// DefaultExpiry is how long a key is remembered.
const DefaultExpiry = 24 * time.Hour

// Record is a reserved key and, once completed, the response it produced.
// Key is already scoped to the principal that sent it.
type Record struct {
	Key          string    `json:"key"`
	Method       string    `json:"method"`
	Route        string    `json:"route"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	StatusCode   int       `json:"status_code,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Body         string    `json:"body,omitempty"`
	ResponseHash string    `json:"response_hash,omitempty"`
}

// ValidateKey checks if an idempotency key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for _, c := range key {
		if c < 0x21 || c > 0x7e {
			return ErrInvalidKey
		}
	}
	return nil
}

// ScopedKey namespaces a client key by principal so callers cannot replay
// each other's responses.
func ScopedKey(principalID, key string) string {
	return principalID + ":" + key
}

// ComputeResponseHash computes a SHA256 hash of the response body.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository persists idempotency records.
type Repository interface {
	// Get returns the record for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// Reserve stores rec if its key is free and returns ErrKeyExists otherwise.
	Reserve(ctx context.Context, rec *Record) error

	// Complete overwrites the record for rec.Key with the final response.
	Complete(ctx context.Context, rec *Record) error

	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
}
