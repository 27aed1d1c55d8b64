package api

import (
	"net/http"

	"github.com/onnwee/timeguard/internal/policy"
)

// PolicyHandlers serves the IP whitelist and geo-fences.
type PolicyHandlers struct {
	service *policy.Service
}

// NewPolicyHandlers creates the IP whitelist and geo-fence handlers.
func NewPolicyHandlers(service *policy.Service) *PolicyHandlers {
	return &PolicyHandlers{service: service}
}

// ListIPs handles GET /ip-whitelist.
func (h *PolicyHandlers) ListIPs(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	entries, err := h.service.ListIPs(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*policy.IPEntry{}
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// CreateIP handles POST /ip-whitelist (admin).
func (h *PolicyHandlers) CreateIP(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in policy.IPInput
	if !decodeJSON(w, r, &in) {
		return
	}
	entry, err := h.service.CreateIP(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, entry)
}

// UpdateIP handles PUT /ip-whitelist/{id} (admin).
func (h *PolicyHandlers) UpdateIP(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in policy.IPInput
	if !decodeJSON(w, r, &in) {
		return
	}
	entry, err := h.service.UpdateIP(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// DeleteIP handles DELETE /ip-whitelist/{id} (admin).
func (h *PolicyHandlers) DeleteIP(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteIP(r.Context(), p, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFences handles GET /geo-fences.
func (h *PolicyHandlers) ListFences(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	fences, err := h.service.ListFences(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if fences == nil {
		fences = []*policy.GeoFence{}
	}
	writeJSON(w, r, http.StatusOK, fences)
}

// CreateFence handles POST /geo-fences (admin).
func (h *PolicyHandlers) CreateFence(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in policy.FenceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	fence, err := h.service.CreateFence(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, fence)
}

// UpdateFence handles PUT /geo-fences/{id} (admin).
func (h *PolicyHandlers) UpdateFence(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in policy.FenceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	fence, err := h.service.UpdateFence(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, fence)
}

// DeleteFence handles DELETE /geo-fences/{id} (admin).
func (h *PolicyHandlers) DeleteFence(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteFence(r.Context(), p, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
