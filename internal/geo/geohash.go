package geo

import "strings"

// CoarsePrecision is the geohash length used when a location is logged.
// Six characters is roughly a 1.2km x 0.6km cell.
const CoarsePrecision = 6

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of (lat, lng) with the given length.
// Precision below 1 falls back to CoarsePrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = CoarsePrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var b strings.Builder
	b.Grow(precision)

	var ch uint
	bits := 0
	even := true
	for b.Len() < precision {
		rng, v := &latRange, lat
		if even {
			rng, v = &lngRange, lng
		}
		mid := (rng[0] + rng[1]) / 2
		if v > mid {
			ch |= 1 << (4 - bits)
			rng[0] = mid
		} else {
			rng[1] = mid
		}
		even = !even

		if bits++; bits == 5 {
			b.WriteByte(base32[ch])
			bits, ch = 0, 0
		}
	}
	return b.String()
}

// Coarse returns the CoarsePrecision geohash of p, for log lines that must
// not carry precise positions.
func (p Point) Coarse() string {
	return Encode(p.Latitude.InexactFloat64(), p.Longitude.InexactFloat64(), CoarsePrecision)
}
