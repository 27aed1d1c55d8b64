package db

import "testing"

func TestCanonicalID(t *testing.T) {
	const canonical = "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"
	tests := []struct {
		in   string
		want string
	}{
		{canonical, canonical},
		{"6F1C2D3E-4A5B-4C6D-8E7F-9A0B1C2D3E4F", canonical},
		{"{6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f}", canonical},
		{"urn:uuid:6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f", canonical},
		{"6f1c2d3e4a5b4c6d8e7f9a0b1c2d3e4f", canonical},
		{"not-a-uuid", "not-a-uuid"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalID(tt.in); got != tt.want {
			t.Errorf("CanonicalID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
