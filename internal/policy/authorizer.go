package policy

import (
	"github.com/onnwee/timeguard/internal/geo"
)

// Decision is the outcome of evaluating a clock event's origin.
type Decision struct {
	IPAllowed  bool
	GeoAllowed bool
}

// Allowed reports whether both checks passed.
func (d Decision) Allowed() bool {
	return d.IPAllowed && d.GeoAllowed
}

// Reason returns a short label for a denied decision, for logs and metrics.
func (d Decision) Reason() string {
	switch {
	case d.Allowed():
		return "allowed"
	case !d.IPAllowed && !d.GeoAllowed:
		return "ip_and_location"
	case !d.IPAllowed:
		return "ip"
	default:
		return "location"
	}
}

// Evaluate checks ip against entries and (lat, lng) against fences.
// Missing coordinates or an unparseable ip fail their check; an empty policy
// denies everything.
func Evaluate(entries []IPEntry, fences []GeoFence, lat *geo.Latitude, lng *geo.Longitude, ip string) Decision {
	return Decision{
		IPAllowed:  ipAllowed(entries, ip),
		GeoAllowed: geoAllowed(fences, lat, lng),
	}
}

// Authorize is the boolean form of Evaluate.
func Authorize(entries []IPEntry, fences []GeoFence, lat *geo.Latitude, lng *geo.Longitude, ip string) bool {
	return Evaluate(entries, fences, lat, lng, ip).Allowed()
}

func ipAllowed(entries []IPEntry, ip string) bool {
	addr, err := ParseIP(ip)
	if err != nil {
		return false
	}
	for _, e := range entries {
		allowed, err := ParseIP(e.IPAddress)
		if err == nil && allowed == addr {
			return true
		}
	}
	return false
}

func geoAllowed(fences []GeoFence, lat *geo.Latitude, lng *geo.Longitude) bool {
	if lat == nil || lng == nil {
		return false
	}
	circles := make([]geo.Circle, len(fences))
	for i, f := range fences {
		circles[i] = f.Circle()
	}
	return geo.AnyContains(circles, geo.PointOf(*lat, *lng))
}
