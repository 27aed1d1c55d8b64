package geo

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func point(t *testing.T, lat, lng string) Point {
	t.Helper()
	p, err := NewPoint(dec(lat), dec(lng))
	if err != nil {
		t.Fatalf("NewPoint(%s, %s) error = %v", lat, lng, err)
	}
	return p
}

func TestCircle_Contains(t *testing.T) {
	tests := []struct {
		name   string
		circle Circle
		lat    string
		lng    string
		want   bool
	}{
		{"center", Circle{Center: Point{dec("10"), dec("10")}, Radius: 500}, "10.0", "10.0", true},
		{"edge of unit circle on latitude axis", Circle{Center: Point{dec("0"), dec("0")}, Radius: 1}, "1", "0", true},
		{"edge of unit circle on longitude axis", Circle{Center: Point{dec("0"), dec("0")}, Radius: 1}, "0", "-1", true},
		{"just outside unit circle", Circle{Center: Point{dec("0"), dec("0")}, Radius: 1}, "1.00001", "0", false},
		{"within tolerance of edge", Circle{Center: Point{dec("0"), dec("0")}, Radius: 1}, "1.0000005", "0", true},
		{"diagonal 3-4-5 on edge", Circle{Center: Point{dec("0"), dec("0")}, Radius: 5}, "3", "4", true},
		{"diagonal outside", Circle{Center: Point{dec("0"), dec("0")}, Radius: 4}, "3", "4", false},
		{"radius compared in degrees, not meters", Circle{Center: Point{dec("10"), dec("10")}, Radius: 50}, "50", "40", true},
		{"zero radius never contains", Circle{Center: Point{dec("0"), dec("0")}, Radius: 0}, "0", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := point(t, tt.lat, tt.lng)
			if got := tt.circle.Contains(p); got != tt.want {
				t.Errorf("Contains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnyContains(t *testing.T) {
	fences := []Circle{
		{Center: Point{dec("0"), dec("0")}, Radius: 1},
		{Center: Point{dec("40"), dec("40")}, Radius: 2},
	}
	if !AnyContains(fences, point(t, "41", "41")) {
		t.Error("expected second fence to contain (41,41)")
	}
	if AnyContains(fences, point(t, "20", "20")) {
		t.Error("expected no fence to contain (20,20)")
	}
	if AnyContains(nil, point(t, "0", "0")) {
		t.Error("empty fence set must never contain")
	}
}

func TestNewPoint_PrecisionAndRange(t *testing.T) {
	p := point(t, "12.123456789", "-77.12345678")
	if got := FormatLatitude(p.Latitude); got != "12.12345679" {
		t.Errorf("latitude = %s, want 12.12345679", got)
	}
	if got := FormatLongitude(p.Longitude); got != "-77.1234568" {
		t.Errorf("longitude = %s, want -77.1234568", got)
	}

	if _, err := NewPoint(dec("90.1"), dec("0")); !errors.Is(err, ErrLatitudeRange) {
		t.Errorf("expected ErrLatitudeRange, got %v", err)
	}
	if _, err := NewPoint(dec("0"), dec("-180.5")); !errors.Is(err, ErrLongitudeRange) {
		t.Errorf("expected ErrLongitudeRange, got %v", err)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		lat, lng  float64
		precision int
		want      string
	}{
		{57.64911, 10.40744, 11, "u4pruydqqvj"},
		{40.7128, -74.0060, 6, "dr5reg"},
		{57.64911, 10.40744, 0, "u4pruy"},
	}
	for _, tt := range tests {
		if got := Encode(tt.lat, tt.lng, tt.precision); got != tt.want {
			t.Errorf("Encode(%v, %v, %d) = %q, want %q", tt.lat, tt.lng, tt.precision, got, tt.want)
		}
	}
}

func TestPoint_Coarse(t *testing.T) {
	p := point(t, "40.7128", "-74.0060")
	if got := p.Coarse(); len(got) != CoarsePrecision {
		t.Errorf("Coarse() length = %d, want %d", len(got), CoarsePrecision)
	}
}

func TestCoordinateJSONRoundTrip(t *testing.T) {
	type body struct {
		Lat *Latitude  `json:"latitude"`
		Lng *Longitude `json:"longitude"`
	}

	tests := []struct {
		name    string
		in      string
		wantLat string
		wantLng string
	}{
		{"strings at full precision", `{"latitude":"12.34567891","longitude":"-98.7654321"}`, "12.34567891", "-98.7654321"},
		{"bare numbers keep digits", `{"latitude":12.34567891,"longitude":-98.7654321}`, "12.34567891", "-98.7654321"},
		{"short values padded", `{"latitude":"1.5","longitude":"2"}`, "1.50000000", "2.0000000"},
		{"extra digits rounded", `{"latitude":"0.123456789","longitude":"0.12345678"}`, "0.12345679", "0.1234568"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			if err := json.Unmarshal([]byte(tt.in), &b); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if b.Lat.String() != tt.wantLat || b.Lng.String() != tt.wantLng {
				t.Errorf("got (%s, %s), want (%s, %s)", b.Lat, b.Lng, tt.wantLat, tt.wantLng)
			}

			out, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			want := `{"latitude":"` + tt.wantLat + `","longitude":"` + tt.wantLng + `"}`
			if string(out) != want {
				t.Errorf("Marshal() = %s, want %s", out, want)
			}
		})
	}
}

func TestCoordinateJSONRejects(t *testing.T) {
	for _, in := range []string{`{"latitude":"91"}`, `{"latitude":"abc"}`, `{"longitude":-180.5}`} {
		var b struct {
			Lat *Latitude  `json:"latitude"`
			Lng *Longitude `json:"longitude"`
		}
		if err := json.Unmarshal([]byte(in), &b); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}

func TestCoordinateValue(t *testing.T) {
	v, err := MustLatitude("-33.8688").Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "-33.86880000" {
		t.Errorf("Value() = %v", v)
	}

	var lng Longitude
	if err := lng.Scan("151.2093000"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if lng.String() != "151.2093000" {
		t.Errorf("Scan() = %s", lng)
	}
}
