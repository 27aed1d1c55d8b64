// Package api provides the HTTP handlers for the attendance service and the
// standardized JSON error format they share.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the principal may not perform the operation.
	ErrCodeForbidden = "forbidden"

	// ErrCodeLocationDenied indicates a clock event was rejected by the
	// IP whitelist and geo-fence policy.
	ErrCodeLocationDenied = "location_denied"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// Call middleware.SetErrorCode first so the logging middleware records the
// code for 4xx and 5xx responses:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Profile not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden, ErrCodeLocationDenied:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// codeFor maps a domain error onto its API error code.
func codeFor(err error) string {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return ErrCodeValidation
	case apperr.ErrConflict:
		return ErrCodeConflict
	case apperr.ErrAccessDenied:
		return ErrCodeForbidden
	case apperr.ErrLocationDenied:
		return ErrCodeLocationDenied
	case apperr.ErrNotFound:
		return ErrCodeNotFound
	case apperr.ErrUnauthenticated:
		return ErrCodeAuthFailed
	default:
		return ErrCodeInternal
	}
}

// writeServiceError renders an error returned by a domain service.
// Persistence failures are logged and reported without their detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := codeFor(err)
	ctx := middleware.SetErrorCode(r.Context(), code)

	message := err.Error()
	if code == ErrCodeInternal {
		slog.ErrorContext(ctx, "request failed", "error", err)
		message = "Internal server error"
	}
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// WriteAuthError renders authentication failures for auth.Authenticate.
func WriteAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperr.ErrUnauthenticated) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}
	writeServiceError(w, r, err)
}

// writeBadRequest reports a body or query that could not be decoded.
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
	WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, message)
}
