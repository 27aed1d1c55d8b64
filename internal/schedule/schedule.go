// Package schedule manages the shift schedules admins assign to principals.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/profile"
)

// Table is the schedules table name used for access checks and auditing.
const Table = "schedules"

// Common errors for schedule operations.
var (
	ErrScheduleNotFound = fmt.Errorf("%w: schedule not found", apperr.ErrNotFound)
	ErrInvalidRange     = fmt.Errorf("%w: start_time must be before end_time", apperr.ErrValidation)
	ErrUnknownPrincipal = fmt.Errorf("%w: principal_id does not match a profile", apperr.ErrValidation)
)

// Entry is one scheduled shift.
type Entry struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input is the body for creating or replacing a schedule entry.
type Input struct {
	PrincipalID string    `json:"principal_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// ProfileLookup resolves principal ids to profiles.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*profile.Profile, error)
}
