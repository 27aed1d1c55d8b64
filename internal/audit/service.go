package audit

import (
	"context"
	"fmt"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
)

// Result caps for List and Export.
const (
	MaxListLimit   = 1000
	MaxExportLimit = 10000
)

// ErrArchiveDisabled is returned by Archive when no object storage is configured.
var ErrArchiveDisabled = fmt.Errorf("%w: audit archive is not configured", apperr.ErrNotFound)

// Service exposes the audit log to administrators.
type Service struct {
	repo     Repository
	archiver *Archiver
}

// NewService creates a Service. archiver may be nil.
func NewService(repo Repository, archiver *Archiver) *Service {
	return &Service{repo: repo, archiver: archiver}
}

func (s *Service) authorize(p access.Principal) error {
	return access.Check(p, access.ResourceAuditLog, access.OpRead, "")
}

func clampLimit(f Filter, limit int) Filter {
	if f.Limit <= 0 || f.Limit > limit {
		f.Limit = limit
	}
	return f
}

// List returns records matching f, newest first.
func (s *Service) List(ctx context.Context, p access.Principal, f Filter) ([]*Record, error) {
	if err := s.authorize(p); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, clampLimit(f, MaxListLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return records, nil
}

// Export renders matching records in the requested format.
func (s *Service) Export(ctx context.Context, p access.Principal, opts ExportOptions) ([]byte, error) {
	if err := s.authorize(p); err != nil {
		return nil, err
	}
	opts.Filter = clampLimit(opts.Filter, MaxExportLimit)
	return ExportLogs(ctx, s.repo, opts)
}

// Verify walks the whole chain one page at a time.
func (s *Service) Verify(ctx context.Context, p access.Principal) (VerifyResult, error) {
	if err := s.authorize(p); err != nil {
		return VerifyResult{}, err
	}
	res, err := VerifyStored(ctx, s.repo, VerifyPageSize)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return res, nil
}

// Archive uploads matching records to object storage.
func (s *Service) Archive(ctx context.Context, p access.Principal, f Filter) (*ArchiveResult, error) {
	if err := s.authorize(p); err != nil {
		return nil, err
	}
	if s.archiver == nil {
		return nil, ErrArchiveDisabled
	}
	res, err := s.archiver.Archive(ctx, s.repo, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return res, nil
}
