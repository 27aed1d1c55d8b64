package idempotency

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid uuid", "2f1d6a3e-8c1b-4a55-9c1e-6f1f3b1c2d4e", nil},
		{"max length", strings.Repeat("a", MaxKeyLength), nil},
		{"empty", "", ErrInvalidKey},
		{"too long", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
		{"contains space", "abc def", ErrInvalidKey},
		{"control character", "abc\n", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestScopedKey(t *testing.T) {
	a := ScopedKey("principal-a", "k1")
	b := ScopedKey("principal-b", "k1")
	if a == b {
		t.Errorf("keys for different principals must differ, both %q", a)
	}
}

func TestComputeResponseHash(t *testing.T) {
	h1 := ComputeResponseHash(`{"id":"1"}`)
	h2 := ComputeResponseHash(`{"id":"1"}`)
	h3 := ComputeResponseHash(`{"id":"2"}`)

	if h1 != h2 {
		t.Error("hash must be deterministic")
	}
	if h1 == h3 {
		t.Error("different bodies must hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(h1))
	}
}
