package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/timeguard/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks a response served from a stored result.
const IdempotentReplayHeader = "Idempotent-Replayed"

// idempotencyResponseWriter passes the response through and keeps a copy.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

// Idempotency replays the stored response when a request repeats an
// Idempotency-Key the same principal already used. Requests without the
// header pass through. Only 2xx responses are kept; any other outcome frees
// the key so the client can retry. Place it after authentication.
func Idempotency(repo idempotency.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			if err := idempotency.ValidateKey(key); err != nil {
				writeIdempotencyError(w, r, http.StatusBadRequest, "validation_error", "Invalid Idempotency-Key: "+err.Error())
				return
			}

			owner := ""
			if p, ok := GetPrincipal(ctx); ok {
				owner = p.ID
			}
			scoped := idempotency.ScopedKey(owner, key)

			rec := &idempotency.Record{
				Key:    scoped,
				Method: r.Method,
				Route:  r.URL.Path,
				Status: idempotency.StatusProcessing,
			}
			err := repo.Reserve(ctx, rec)
			switch {
			case errors.Is(err, idempotency.ErrKeyExists):
				replay(w, r, repo, scoped)
				return
			case err != nil:
				// Store unavailable: serve without idempotency rather than fail.
				slog.ErrorContext(ctx, "failed to reserve idempotency key", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				if err := repo.Release(ctx, scoped); err != nil {
					slog.ErrorContext(ctx, "failed to release idempotency key", "error", err)
				}
				return
			}

			body := capture.body.String()
			rec.Status = idempotency.StatusCompleted
			rec.StatusCode = capture.statusCode
			rec.ContentType = capture.Header().Get("Content-Type")
			rec.Body = body
			rec.ResponseHash = idempotency.ComputeResponseHash(body)
			if err := repo.Complete(ctx, rec); err != nil {
				slog.ErrorContext(ctx, "failed to store idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, repo idempotency.Repository, key string) {
	ctx := r.Context()
	existing, err := repo.Get(ctx, key)
	if err != nil {
		// Released between Reserve and Get; the client may retry.
		writeIdempotencyError(w, r, http.StatusConflict, "conflict", "Request with this Idempotency-Key is being retried, try again")
		return
	}
	if existing.Status != idempotency.StatusCompleted {
		writeIdempotencyError(w, r, http.StatusConflict, "conflict", "Request with this Idempotency-Key is still in progress")
		return
	}
	if idempotency.ComputeResponseHash(existing.Body) != existing.ResponseHash {
		slog.ErrorContext(ctx, "stored idempotent response failed integrity check")
		writeIdempotencyError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	slog.InfoContext(ctx, "replaying idempotent response", "status", existing.StatusCode)
	if existing.ContentType != "" {
		w.Header().Set("Content-Type", existing.ContentType)
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(existing.StatusCode)
	_, _ = w.Write([]byte(existing.Body))
}

func writeIdempotencyError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)
	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
