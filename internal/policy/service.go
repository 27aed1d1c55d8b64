package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/audit"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/geo"
	"github.com/onnwee/timeguard/internal/validate"
)

// IPInput is the body for creating or replacing an allowlist entry.
type IPInput struct {
	IPAddress   string `json:"ip_address"`
	Description string `json:"description"`
}

// FenceInput is the body for creating or replacing a geo-fence.
type FenceInput struct {
	Name         string         `json:"name"`
	Latitude     *geo.Latitude  `json:"latitude"`
	Longitude    *geo.Longitude `json:"longitude"`
	RadiusMeters int64          `json:"radius_meters"`
}

// Service manages the location policy. Reads are open to any authenticated
// principal; writes are admin only and audited.
type Service struct {
	ips    IPRepository
	fences FenceRepository
	audit  *audit.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(ips IPRepository, fences FenceRepository, writer *audit.Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ips: ips, fences: fences, audit: writer, logger: logger, now: time.Now}
}

// Snapshot returns the full current policy for the authorizer.
func (s *Service) Snapshot(ctx context.Context) ([]IPEntry, []GeoFence, error) {
	entries, err := s.ips.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	fences, err := s.fences.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	outEntries := make([]IPEntry, len(entries))
	for i, e := range entries {
		outEntries[i] = *e
	}
	outFences := make([]GeoFence, len(fences))
	for i, f := range fences {
		outFences[i] = *f
	}
	return outEntries, outFences, nil
}

// ListIPs returns every allowlist entry.
func (s *Service) ListIPs(ctx context.Context, p access.Principal) ([]*IPEntry, error) {
	if err := access.Check(p, access.ResourceIPWhitelist, access.OpRead, ""); err != nil {
		return nil, err
	}
	entries, err := s.ips.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return entries, nil
}

func normalizeIPInput(in IPInput) (IPInput, error) {
	addr, err := ParseIP(in.IPAddress)
	if err != nil {
		return IPInput{}, err
	}
	desc, err := validate.Description(in.Description)
	if err != nil {
		return IPInput{}, err
	}
	return IPInput{IPAddress: addr.String(), Description: desc}, nil
}

// CreateIP adds an address to the allowlist.
func (s *Service) CreateIP(ctx context.Context, p access.Principal, in IPInput) (*IPEntry, error) {
	if err := access.Check(p, access.ResourceIPWhitelist, access.OpInsert, ""); err != nil {
		return nil, err
	}
	in, err := normalizeIPInput(in)
	if err != nil {
		return nil, err
	}

	now := db.Timestamp(s.now())
	e := &IPEntry{
		ID:          uuid.NewString(),
		IPAddress:   in.IPAddress,
		Description: in.Description,
		CreatedBy:   p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.audit.Apply(ctx, IPTable, audit.ActionInsert, func(ctx context.Context) (audit.Change, error) {
		if err := s.ips.Insert(ctx, e); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: e.ID, New: e}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ip allowlist entry created",
		slog.String("entry_id", e.ID),
		slog.String("ip_address", e.IPAddress))
	return e, nil
}

// UpdateIP replaces the address and description of an entry.
func (s *Service) UpdateIP(ctx context.Context, p access.Principal, id string, in IPInput) (*IPEntry, error) {
	if err := access.Check(p, access.ResourceIPWhitelist, access.OpUpdate, ""); err != nil {
		return nil, err
	}
	in, err := normalizeIPInput(in)
	if err != nil {
		return nil, err
	}

	var updated *IPEntry
	err = s.audit.Apply(ctx, IPTable, audit.ActionUpdate, func(ctx context.Context) (audit.Change, error) {
		old, err := s.ips.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}
		e := *old
		e.IPAddress = in.IPAddress
		e.Description = in.Description
		e.UpdatedAt = db.Timestamp(s.now())
		if err := s.ips.Update(ctx, &e); err != nil {
			return audit.Change{}, err
		}
		updated = &e
		return audit.Change{RecordID: e.ID, Old: old, New: &e}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteIP removes an entry from the allowlist.
func (s *Service) DeleteIP(ctx context.Context, p access.Principal, id string) error {
	if err := access.Check(p, access.ResourceIPWhitelist, access.OpDelete, ""); err != nil {
		return err
	}
	return s.audit.Apply(ctx, IPTable, audit.ActionDelete, func(ctx context.Context) (audit.Change, error) {
		old, err := s.ips.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}
		if err := s.ips.Delete(ctx, id); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: old.ID, Old: old}, nil
	})
}

// ListFences returns every geo-fence.
func (s *Service) ListFences(ctx context.Context, p access.Principal) ([]*GeoFence, error) {
	if err := access.Check(p, access.ResourceGeoFences, access.OpRead, ""); err != nil {
		return nil, err
	}
	fences, err := s.fences.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return fences, nil
}

func validateFenceInput(in FenceInput) (FenceInput, error) {
	name, err := validate.FenceName(in.Name)
	if err != nil {
		return FenceInput{}, err
	}
	if in.Latitude == nil || in.Longitude == nil {
		return FenceInput{}, fmt.Errorf("%w: latitude and longitude are required", apperr.ErrValidation)
	}
	if in.RadiusMeters <= 0 || in.RadiusMeters > maxRadius {
		return FenceInput{}, ErrInvalidRadius
	}
	in.Name = name
	return in, nil
}

// CreateFence adds a geo-fence.
func (s *Service) CreateFence(ctx context.Context, p access.Principal, in FenceInput) (*GeoFence, error) {
	if err := access.Check(p, access.ResourceGeoFences, access.OpInsert, ""); err != nil {
		return nil, err
	}
	in, err := validateFenceInput(in)
	if err != nil {
		return nil, err
	}

	now := db.Timestamp(s.now())
	f := &GeoFence{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Latitude:     *in.Latitude,
		Longitude:    *in.Longitude,
		RadiusMeters: in.RadiusMeters,
		CreatedBy:    p.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.audit.Apply(ctx, FenceTable, audit.ActionInsert, func(ctx context.Context) (audit.Change, error) {
		if err := s.fences.Insert(ctx, f); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: f.ID, New: f}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "geo-fence created",
		slog.String("fence_id", f.ID),
		slog.String("geohash", f.Circle().Center.Coarse()),
		slog.Int64("radius_meters", f.RadiusMeters))
	return f, nil
}

// UpdateFence replaces every field of a geo-fence.
func (s *Service) UpdateFence(ctx context.Context, p access.Principal, id string, in FenceInput) (*GeoFence, error) {
	if err := access.Check(p, access.ResourceGeoFences, access.OpUpdate, ""); err != nil {
		return nil, err
	}
	in, err := validateFenceInput(in)
	if err != nil {
		return nil, err
	}

	var updated *GeoFence
	err = s.audit.Apply(ctx, FenceTable, audit.ActionUpdate, func(ctx context.Context) (audit.Change, error) {
		old, err := s.fences.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}
		f := *old
		f.Name = in.Name
		f.Latitude = *in.Latitude
		f.Longitude = *in.Longitude
		f.RadiusMeters = in.RadiusMeters
		f.UpdatedAt = db.Timestamp(s.now())
		if err := s.fences.Update(ctx, &f); err != nil {
			return audit.Change{}, err
		}
		updated = &f
		return audit.Change{RecordID: f.ID, Old: old, New: &f}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFence removes a geo-fence.
func (s *Service) DeleteFence(ctx context.Context, p access.Principal, id string) error {
	if err := access.Check(p, access.ResourceGeoFences, access.OpDelete, ""); err != nil {
		return err
	}
	return s.audit.Apply(ctx, FenceTable, audit.ActionDelete, func(ctx context.Context) (audit.Change, error) {
		old, err := s.fences.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}
		if err := s.fences.Delete(ctx, id); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: old.ID, Old: old}, nil
	})
}
