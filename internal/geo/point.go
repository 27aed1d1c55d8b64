// Package geo provides the fixed-precision coordinate types and the
// point-in-circle containment used by geo-fence authorization.
package geo

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Fractional digits kept for stored and encoded coordinates.
const (
	LatitudeScale  = 8
	LongitudeScale = 7
)

var (
	// ErrLatitudeRange is returned for latitudes outside [-90, 90].
	ErrLatitudeRange = errors.New("latitude must be between -90 and 90")
	// ErrLongitudeRange is returned for longitudes outside [-180, 180].
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// Point is a (latitude, longitude) pair held as exact decimals.
type Point struct {
	Latitude  decimal.Decimal
	Longitude decimal.Decimal
}

// NewPoint validates and rounds lat/lng to their storage precision.
func NewPoint(lat, lng decimal.Decimal) (Point, error) {
	lat, err := NormalizeLatitude(lat)
	if err != nil {
		return Point{}, err
	}
	lng, err = NormalizeLongitude(lng)
	if err != nil {
		return Point{}, err
	}
	return Point{Latitude: lat, Longitude: lng}, nil
}

// NormalizeLatitude checks the range of lat and rounds it to LatitudeScale digits.
func NormalizeLatitude(lat decimal.Decimal) (decimal.Decimal, error) {
	if lat.Abs().GreaterThan(maxLatitude) {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrLatitudeRange, lat)
	}
	return lat.Round(LatitudeScale), nil
}

// NormalizeLongitude checks the range of lng and rounds it to LongitudeScale digits.
func NormalizeLongitude(lng decimal.Decimal) (decimal.Decimal, error) {
	if lng.Abs().GreaterThan(maxLongitude) {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrLongitudeRange, lng)
	}
	return lng.Round(LongitudeScale), nil
}

// FormatLatitude renders lat with exactly LatitudeScale fractional digits.
func FormatLatitude(lat decimal.Decimal) string {
	return lat.StringFixed(LatitudeScale)
}

// FormatLongitude renders lng with exactly LongitudeScale fractional digits.
func FormatLongitude(lng decimal.Decimal) string {
	return lng.StringFixed(LongitudeScale)
}
