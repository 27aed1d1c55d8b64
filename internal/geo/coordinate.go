package geo

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Latitude is a latitude held at LatitudeScale digits. It encodes to JSON
// as a fixed-precision string and decodes from a string or a bare number
// without passing through float64.
type Latitude struct {
	decimal.Decimal
}

// Longitude is the LongitudeScale counterpart of Latitude.
type Longitude struct {
	decimal.Decimal
}

// ParseLatitude parses, range-checks and rounds s.
func ParseLatitude(s string) (Latitude, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Latitude{}, fmt.Errorf("invalid latitude %q: %w", s, err)
	}
	d, err = NormalizeLatitude(d)
	if err != nil {
		return Latitude{}, err
	}
	return Latitude{d}, nil
}

// ParseLongitude parses, range-checks and rounds s.
func ParseLongitude(s string) (Longitude, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Longitude{}, fmt.Errorf("invalid longitude %q: %w", s, err)
	}
	d, err = NormalizeLongitude(d)
	if err != nil {
		return Longitude{}, err
	}
	return Longitude{d}, nil
}

// MustLatitude is ParseLatitude for constants; it panics on bad input.
func MustLatitude(s string) Latitude {
	lat, err := ParseLatitude(s)
	if err != nil {
		panic(err)
	}
	return lat
}

// MustLongitude is ParseLongitude for constants; it panics on bad input.
func MustLongitude(s string) Longitude {
	lng, err := ParseLongitude(s)
	if err != nil {
		panic(err)
	}
	return lng
}

func (l Latitude) String() string  { return FormatLatitude(l.Decimal) }
func (l Longitude) String() string { return FormatLongitude(l.Decimal) }

// Equal compares numerically.
func (l Latitude) Equal(o Latitude) bool { return l.Decimal.Equal(o.Decimal) }

// Equal compares numerically.
func (l Longitude) Equal(o Longitude) bool { return l.Decimal.Equal(o.Decimal) }

func (l Latitude) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l *Latitude) UnmarshalJSON(data []byte) error {
	parsed, err := ParseLatitude(string(unquote(data)))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Longitude) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l *Longitude) UnmarshalJSON(data []byte) error {
	parsed, err := ParseLongitude(string(unquote(data)))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Value writes the fixed-precision text so NUMERIC columns store every digit.
func (l Latitude) Value() (driver.Value, error) { return l.String(), nil }

// Value writes the fixed-precision text so NUMERIC columns store every digit.
func (l Longitude) Value() (driver.Value, error) { return l.String(), nil }

func unquote(data []byte) []byte {
	return bytes.Trim(bytes.TrimSpace(data), `"`)
}

// PointOf builds a Point from already-normalized coordinates.
func PointOf(lat Latitude, lng Longitude) Point {
	return Point{Latitude: lat.Decimal, Longitude: lng.Decimal}
}
