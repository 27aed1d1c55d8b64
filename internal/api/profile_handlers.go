package api

import (
	"net/http"

	"github.com/onnwee/timeguard/internal/profile"
)

// ProfileHandlers serves principal profiles.
type ProfileHandlers struct {
	service *profile.Service
}

// NewProfileHandlers creates the profile handlers.
func NewProfileHandlers(service *profile.Service) *ProfileHandlers {
	return &ProfileHandlers{service: service}
}

// Me handles GET /me.
func (h *ProfileHandlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	prof, err := h.service.Me(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prof)
}

// ListProfiles handles GET /profiles (admin).
func (h *ProfileHandlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	profiles, err := h.service.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []*profile.Profile{}
	}
	writeJSON(w, r, http.StatusOK, profiles)
}

// CreateProfile handles POST /profiles (admin).
func (h *ProfileHandlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in profile.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	created, err := h.service.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// GetProfile handles GET /profiles/{id}.
func (h *ProfileHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	prof, err := h.service.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prof)
}

// UpdateProfile handles PUT /profiles/{id}. Absent fields are left unchanged.
func (h *ProfileHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in profile.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	updated, err := h.service.Update(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}
