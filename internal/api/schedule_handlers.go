package api

import (
	"net/http"

	"github.com/onnwee/timeguard/internal/schedule"
)

// ScheduleHandlers serves work schedules.
type ScheduleHandlers struct {
	service *schedule.Service
}

// NewScheduleHandlers creates the schedule handlers.
func NewScheduleHandlers(service *schedule.Service) *ScheduleHandlers {
	return &ScheduleHandlers{service: service}
}

// ListSchedules handles GET /schedules[?principal_id=].
// Employees always see their own entries.
func (h *ScheduleHandlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	entries, err := h.service.List(r.Context(), p, r.URL.Query().Get("principal_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*schedule.Entry{}
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// CreateSchedule handles POST /schedules (admin).
func (h *ScheduleHandlers) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in schedule.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	entry, err := h.service.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, entry)
}

// UpdateSchedule handles PUT /schedules/{id} (admin).
func (h *ScheduleHandlers) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in schedule.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	entry, err := h.service.Update(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// DeleteSchedule handles DELETE /schedules/{id} (admin).
func (h *ScheduleHandlers) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), p, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
