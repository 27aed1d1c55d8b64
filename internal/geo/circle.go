package geo

import "github.com/shopspring/decimal"

// containmentEpsilon is the tolerance PostgreSQL's geometric comparisons apply
// (FPle: a <= b + 1e-6). Fences evaluated here must accept exactly the points
// the `point <@ circle` operator accepts.
var containmentEpsilon = decimal.New(1, -6)

// Circle is a geo-fence region. The center is treated as the planar point
// (longitude, latitude) and Radius is compared directly against the
// degree-space distance, with no geodesic correction.
type Circle struct {
	Center Point
	Radius int64
}

// Contains reports whether p lies inside or on the edge of c.
// The comparison is done on squared distances so it stays exact.
func (c Circle) Contains(p Point) bool {
	if c.Radius <= 0 {
		return false
	}
	dx := p.Longitude.Sub(c.Center.Longitude)
	dy := p.Latitude.Sub(c.Center.Latitude)
	dist2 := dx.Mul(dx).Add(dy.Mul(dy))

	limit := decimal.NewFromInt(c.Radius).Add(containmentEpsilon)
	return dist2.LessThanOrEqual(limit.Mul(limit))
}

// AnyContains reports whether at least one circle contains p.
func AnyContains(circles []Circle, p Point) bool {
	for _, c := range circles {
		if c.Contains(p) {
			return true
		}
	}
	return false
}
