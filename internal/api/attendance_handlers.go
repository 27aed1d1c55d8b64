package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onnwee/timeguard/internal/attendance"
	"github.com/onnwee/timeguard/internal/geo"
	"github.com/onnwee/timeguard/internal/middleware"
)

// AttendanceHandlers serves clock events.
type AttendanceHandlers struct {
	recorder *attendance.Recorder
}

// NewAttendanceHandlers creates the clock event handlers.
func NewAttendanceHandlers(recorder *attendance.Recorder) *AttendanceHandlers {
	return &AttendanceHandlers{recorder: recorder}
}

// ClockEventRequest is the body of POST /clock-events.
// Coordinates may be sent as JSON strings or numbers. There is no timestamp
// field; events are always stamped with server time.
type ClockEventRequest struct {
	PrincipalID string               `json:"principal_id,omitempty"` // defaults to the caller
	Type        attendance.EntryType `json:"type"`
	IP          string               `json:"ip,omitempty"`
	DeviceInfo  json.RawMessage      `json:"device_info,omitempty"`
	Latitude    *geo.Latitude        `json:"latitude,omitempty"`
	Longitude   *geo.Longitude       `json:"longitude,omitempty"`
	Note        *string              `json:"note,omitempty"`
}

// CreateClockEvent handles POST /clock-events.
func (h *AttendanceHandlers) CreateClockEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req ClockEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	owner := strings.TrimSpace(req.PrincipalID)
	if owner == "" {
		owner = p.ID
	}
	ip := strings.TrimSpace(req.IP)
	if ip == "" {
		ip = middleware.GetClientIP(r.Context())
	}

	ev, err := h.recorder.Record(r.Context(), p, attendance.RecordInput{
		OwnerID:    owner,
		Type:       req.Type,
		IP:         ip,
		DeviceInfo: req.DeviceInfo,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Note:       req.Note,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ev)
}

// ListMyEvents handles GET /me/events.
func (h *AttendanceHandlers) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	events, err := h.recorder.ListMine(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*attendance.Event{}
	}
	writeJSON(w, r, http.StatusOK, events)
}
