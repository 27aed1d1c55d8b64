package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/audit"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/profile"
)

// Service implements schedule management. Admins read and write every
// entry; employees read their own.
type Service struct {
	repo     Repository
	profiles ProfileLookup
	audit    *audit.Writer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, profiles ProfileLookup, writer *audit.Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, profiles: profiles, audit: writer, logger: logger, now: time.Now}
}

// List returns schedule entries. Employees always get their own; admins get
// every entry unless principalID narrows it.
func (s *Service) List(ctx context.Context, p access.Principal, principalID string) ([]*Entry, error) {
	if principalID == "" && !p.IsAdmin() {
		principalID = p.ID
	}
	if err := access.Check(p, access.ResourceSchedules, access.OpRead, principalID); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return entries, nil
}

func (s *Service) validate(ctx context.Context, in Input) (Input, error) {
	principalID, err := uuid.Parse(in.PrincipalID)
	if err != nil {
		return Input{}, fmt.Errorf("%w: principal_id must be a UUID", apperr.ErrValidation)
	}
	in.PrincipalID = principalID.String()
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return Input{}, fmt.Errorf("%w: start_time and end_time are required", apperr.ErrValidation)
	}
	in.StartTime = db.Timestamp(in.StartTime)
	in.EndTime = db.Timestamp(in.EndTime)
	if !in.StartTime.Before(in.EndTime) {
		return Input{}, ErrInvalidRange
	}
	if _, err := s.profiles.GetByID(ctx, in.PrincipalID); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return Input{}, ErrUnknownPrincipal
		}
		return Input{}, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return in, nil
}

// Create assigns a shift. Admin only; the caller is recorded as created_by.
func (s *Service) Create(ctx context.Context, p access.Principal, in Input) (*Entry, error) {
	if err := access.Check(p, access.ResourceSchedules, access.OpInsert, in.PrincipalID); err != nil {
		return nil, err
	}
	in, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	now := db.Timestamp(s.now())
	e := &Entry{
		ID:          uuid.NewString(),
		PrincipalID: in.PrincipalID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		CreatedBy:   p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.audit.Apply(ctx, Table, audit.ActionInsert, func(ctx context.Context) (audit.Change, error) {
		if err := s.repo.Insert(ctx, e); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: e.ID, New: e}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "schedule created",
		slog.String("schedule_id", e.ID),
		slog.String("principal_id", e.PrincipalID))
	return e, nil
}

// Update replaces the principal and time range of an entry. Admin only.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, in Input) (*Entry, error) {
	if err := access.Check(p, access.ResourceSchedules, access.OpUpdate, in.PrincipalID); err != nil {
		return nil, err
	}
	in, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	var updated *Entry
	err = s.audit.Apply(ctx, Table, audit.ActionUpdate, func(ctx context.Context) (audit.Change, error) {
		old, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}
		e := *old
		e.PrincipalID = in.PrincipalID
		e.StartTime = in.StartTime
		e.EndTime = in.EndTime
		e.UpdatedAt = db.Timestamp(s.now())
		if err := s.repo.Update(ctx, &e); err != nil {
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

// Delete removes an entry. Admin only.
func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	if err := access.Check(p, access.ResourceSchedules, access.OpDelete, ""); err != nil {
		return err
	}
	return s.audit.Apply(ctx, Table, audit.ActionDelete, func(ctx context.Context) (audit.Change, error) {
		old, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return audit.Change{}, err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: old.ID, Old: old}, nil
	})
}
