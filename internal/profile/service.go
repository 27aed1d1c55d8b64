package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/audit"
	"github.com/onnwee/timeguard/internal/auth"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/validate"
)

// CreateInput is the admin request to create a profile ahead of first sign-in.
type CreateInput struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        access.Role `json:"role"`
	EmployeeID  *string     `json:"employee_id"`
	Department  string      `json:"department"`
}

// UpdateInput carries the fields an admin may change. Nil fields are left
// untouched; an empty EmployeeID clears it.
type UpdateInput struct {
	Email       *string      `json:"email"`
	DisplayName *string      `json:"display_name"`
	Role        *access.Role `json:"role"`
	EmployeeID  *string      `json:"employee_id"`
	Department  *string      `json:"department"`
}

// Service implements profile provisioning and management.
type Service struct {
	repo   Repository
	audit  *audit.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, writer *audit.Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: writer, logger: logger, now: time.Now}
}

// ResolvePrincipal returns the stored principal for id, creating the profile
// on first sight. The token's role claim only seeds a new profile; after that
// the stored role wins.
func (s *Service) ResolvePrincipal(ctx context.Context, id auth.Identity) (access.Principal, error) {
	p, err := s.repo.GetByID(ctx, id.Subject)
	if err == nil {
		return p.Principal(), nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return access.Principal{}, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	role := access.Role(id.Role)
	if !role.Valid() {
		role = access.RoleEmployee
	}
	now := db.Timestamp(s.now())
	p = &Profile{
		ID:          id.Subject,
		Email:       id.Email,
		DisplayName: id.Name,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.audit.Apply(audit.AsSystem(ctx), Table, audit.ActionInsert, func(ctx context.Context) (audit.Change, error) {
		if err := s.repo.Insert(ctx, p); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: p.ID, New: p}, nil
	})
	if errors.Is(err, ErrDuplicateProfile) {
		// Provisioned concurrently by another request.
		existing, getErr := s.repo.GetByID(ctx, id.Subject)
		if getErr != nil {
			return access.Principal{}, fmt.Errorf("%w: %v", apperr.ErrPersistence, getErr)
		}
		return existing.Principal(), nil
	}
	if err != nil {
		return access.Principal{}, err
	}

	s.logger.InfoContext(ctx, "profile provisioned",
		slog.String("profile_id", p.ID),
		slog.String("role", string(p.Role)))
	return p.Principal(), nil
}

// Get returns the profile with id if the principal may read it.
func (s *Service) Get(ctx context.Context, principal access.Principal, id string) (*Profile, error) {
	if err := access.Check(principal, access.ResourceProfiles, access.OpRead, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, principal access.Principal) (*Profile, error) {
	return s.Get(ctx, principal, principal.ID)
}

// List returns every profile. Admin only.
func (s *Service) List(ctx context.Context, principal access.Principal) ([]*Profile, error) {
	if err := access.Check(principal, access.ResourceProfiles, access.OpRead, ""); err != nil {
		return nil, err
	}
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return profiles, nil
}

// Create inserts a profile. Admin only.
func (s *Service) Create(ctx context.Context, principal access.Principal, in CreateInput) (*Profile, error) {
	if err := access.Check(principal, access.ResourceProfiles, access.OpInsert, ""); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: id must be a UUID", apperr.ErrValidation)
	}
	role := in.Role
	if role == "" {
		role = access.RoleEmployee
	}

	now := db.Timestamp(s.now())
	p := &Profile{
		ID:          id,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		Role:        role,
		EmployeeID:  in.EmployeeID,
		Department:  in.Department,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := normalize(p); err != nil {
		return nil, err
	}

	err := s.audit.Apply(ctx, Table, audit.ActionInsert, func(ctx context.Context) (audit.Change, error) {
		if err := s.repo.Insert(ctx, p); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: p.ID, New: p}, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies in to the profile with id. Admin only.
func (s *Service) Update(ctx context.Context, principal access.Principal, id string, in UpdateInput) (*Profile, error) {
	if err := access.Check(principal, access.ResourceProfiles, access.OpUpdate, id); err != nil {
		return nil, err
	}

	var updated *Profile
	err := s.audit.Apply(ctx, Table, audit.ActionUpdate, func(ctx context.Context) (audit.Change, error) {
		old, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}

		p := old.clone()
		if in.Email != nil {
			p.Email = *in.Email
		}
		if in.DisplayName != nil {
			p.DisplayName = *in.DisplayName
		}
		if in.Role != nil {
			p.Role = *in.Role
		}
		if in.EmployeeID != nil {
			p.EmployeeID = in.EmployeeID
		}
		if in.Department != nil {
			p.Department = *in.Department
		}
		p.UpdatedAt = db.Timestamp(s.now())

		if err := normalize(p); err != nil {
			return audit.Change{}, err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return audit.Change{}, err
		}
		updated = p
		return audit.Change{RecordID: p.ID, Old: old, New: p}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// normalize validates p in place and rewrites its fields to canonical form.
func normalize(p *Profile) error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: role must be admin or employee", apperr.ErrValidation)
	}

	var err error
	if p.Email, err = validate.Email(p.Email); err != nil {
		return err
	}
	if p.DisplayName, err = validate.DisplayName(p.DisplayName); err != nil {
		return err
	}
	if p.Department, err = validate.Department(p.Department); err != nil {
		return err
	}
	if p.EmployeeID, err = validate.EmployeeID(p.EmployeeID); err != nil {
		return err
	}
	return nil
}
