// Package access implements the row-level authorization rules that decide
// which principal may read or write which rows. Every handler evaluates
// Check before touching the policy store, the authorizer or the recorder.
package access

import (
	"fmt"

	"github.com/onnwee/timeguard/internal/apperr"
)

// Role is the closed set of principal roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Principal is the authenticated caller resolved for one request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Resource names a protected table.
type Resource string

const (
	ResourceProfiles    Resource = "profiles"
	ResourceTimeEntries Resource = "time_entries"
	ResourceSchedules   Resource = "schedules"
	ResourceAuditLog    Resource = "audit_log"
	ResourceIPWhitelist Resource = "ip_whitelist"
	ResourceGeoFences   Resource = "geo_fences"
)

// Operation is the kind of access being requested.
type Operation string

const (
	OpRead   Operation = "read"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Check evaluates the rule for (principal, resource, operation). ownerID is the
// principal id that owns the row being accessed; it is ignored for resources
// without an owner. Returns nil when allowed and an error wrapping
// apperr.ErrAccessDenied otherwise. A principal with an empty id or unknown
// role is always denied.
func Check(p Principal, res Resource, op Operation, ownerID string) error {
	if Allowed(p, res, op, ownerID) {
		return nil
	}
	return fmt.Errorf("%w: %s may not %s %s", apperr.ErrAccessDenied, p.Role, op, res)
}

// Allowed is the boolean form of Check.
func Allowed(p Principal, res Resource, op Operation, ownerID string) bool {
	if p.ID == "" || !p.Role.Valid() {
		return false
	}
	self := ownerID != "" && ownerID == p.ID

	switch res {
	case ResourceProfiles:
		switch op {
		case OpRead:
			return self || p.IsAdmin()
		case OpInsert, OpUpdate:
			return p.IsAdmin()
		}
	case ResourceTimeEntries:
		// Insertion is self-only for every role; admins get no bypass.
		switch op {
		case OpRead, OpInsert:
			return self
		}
	case ResourceSchedules:
		switch op {
		case OpRead:
			return self || p.IsAdmin()
		case OpInsert, OpUpdate, OpDelete:
			return p.IsAdmin()
		}
	case ResourceAuditLog:
		return op == OpRead && p.IsAdmin()
	case ResourceIPWhitelist, ResourceGeoFences:
		if op == OpRead {
			return true
		}
		return p.IsAdmin()
	}
	return false
}
