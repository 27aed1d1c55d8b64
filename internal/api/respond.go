package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/middleware"
)

// maxBodyBytes caps request bodies. Device info is the largest field.
const maxBodyBytes = 64 << 10

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
// It writes the 400 response itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeBadRequest(w, r, "Request body too large")
		case errors.Is(err, io.EOF):
			writeBadRequest(w, r, "Request body is empty")
		default:
			writeBadRequest(w, r, "Invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

// principal returns the authenticated caller or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return access.Principal{}, false
	}
	return p, true
}
