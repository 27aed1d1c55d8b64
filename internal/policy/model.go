// Package policy stores the location policy (the IP allowlist and the
// geo-fences) and decides whether a clock event's origin satisfies it.
package policy

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/geo"
)

// Table names for access checks and auditing.
const (
	IPTable    = "ip_whitelist"
	FenceTable = "geo_fences"
)

// Common errors for policy operations.
var (
	ErrIPNotFound    = fmt.Errorf("%w: ip allowlist entry not found", apperr.ErrNotFound)
	ErrFenceNotFound = fmt.Errorf("%w: geo-fence not found", apperr.ErrNotFound)
	ErrDuplicateIP   = fmt.Errorf("%w: ip address already allowlisted", apperr.ErrConflict)
	ErrInvalidIP     = fmt.Errorf("%w: invalid ip address", apperr.ErrValidation)
	ErrInvalidRadius = fmt.Errorf("%w: radius_meters must be a positive integer", apperr.ErrValidation)
)

// maxRadius is the largest value the INTEGER radius column holds.
const maxRadius = 1<<31 - 1

// IPEntry is one allowlisted network address.
type IPEntry struct {
	ID          string    `json:"id"`
	IPAddress   string    `json:"ip_address"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GeoFence is a circular permitted region.
type GeoFence struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Latitude     geo.Latitude  `json:"latitude"`
	Longitude    geo.Longitude `json:"longitude"`
	RadiusMeters int64         `json:"radius_meters"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Circle returns the containment region of f.
func (f GeoFence) Circle() geo.Circle {
	return geo.Circle{
		Center: geo.PointOf(f.Latitude, f.Longitude),
		Radius: f.RadiusMeters,
	}
}

// ParseIP parses s as a single host address. IPv4-mapped IPv6 addresses are
// folded to IPv4 so both spellings compare equal. Zones and prefixes are
// rejected.
func ParseIP(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidIP, s)
	}
	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("%w: zoned address %q", ErrInvalidIP, s)
	}
	return addr.Unmap(), nil
}
