// Package attendance records clock-in and clock-out events after checking
// the caller's identity and location against the current policy.
package attendance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/geo"
)

// Table is the time_entries table name used for access checks and auditing.
const Table = "time_entries"

// EntryType is the kind of clock event.
type EntryType string

const (
	EntryClockIn  EntryType = "clock_in"
	EntryClockOut EntryType = "clock_out"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	return t == EntryClockIn || t == EntryClockOut
}

// Common errors for attendance operations.
var (
	ErrInvalidEntryType   = fmt.Errorf("%w: type must be clock_in or clock_out", apperr.ErrValidation)
	ErrPartialCoordinates = fmt.Errorf("%w: latitude and longitude must be sent together", apperr.ErrValidation)
	ErrInvalidDeviceInfo  = fmt.Errorf("%w: device_info must be a JSON object", apperr.ErrValidation)
	ErrLocationDenied     = fmt.Errorf("%w: clock events are not permitted from this location", apperr.ErrLocationDenied)
)

// Event is one persisted clock event. Events are never updated or deleted.
type Event struct {
	ID          string          `json:"id"`
	PrincipalID string          `json:"principal_id"`
	Type        EntryType       `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	IPAddress   string          `json:"ip_address"`
	DeviceInfo  json.RawMessage `json:"device_info"`
	Latitude    *geo.Latitude   `json:"latitude"`
	Longitude   *geo.Longitude  `json:"longitude"`
	Notes       *string         `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecordInput is a clock attempt. OwnerID is the principal the event is
// recorded for and must be the caller.
type RecordInput struct {
	OwnerID    string
	Type       EntryType
	Timestamp  *time.Time
	IP         string
	DeviceInfo json.RawMessage
	Latitude   *geo.Latitude
	Longitude  *geo.Longitude
	Note       *string
}
