// Package profile stores the per-principal profile rows, provisions them on
// first authentication and exposes admin management of them.
package profile

import (
	"fmt"
	"time"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
)

// Table is the profiles table name used for access checks and auditing.
const Table = "profiles"

// Common errors for profile operations.
var (
	ErrProfileNotFound     = fmt.Errorf("%w: profile not found", apperr.ErrNotFound)
	ErrDuplicateEmployeeID = fmt.Errorf("%w: employee id already in use", apperr.ErrConflict)
	ErrDuplicateProfile    = fmt.Errorf("%w: profile already exists", apperr.ErrConflict)
)

// Profile is the stored record for one principal. Its ID is the identity
// provider's subject.
type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        access.Role `json:"role"`
	EmployeeID  *string     `json:"employee_id"`
	Department  string      `json:"department"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Principal returns the access principal for p.
func (p *Profile) Principal() access.Principal {
	return access.Principal{ID: p.ID, Role: p.Role}
}

func (p *Profile) clone() *Profile {
	c := *p
	if p.EmployeeID != nil {
		id := *p.EmployeeID
		c.EmployeeID = &id
	}
	return &c
}
