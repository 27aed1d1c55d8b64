package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/timeguard/internal/audit"
)

// AuditHandlers exposes the audit log to administrators.
type AuditHandlers struct {
	service *audit.Service
}

// NewAuditHandlers creates the audit log handlers.
func NewAuditHandlers(service *audit.Service) *AuditHandlers {
	return &AuditHandlers{service: service}
}

// parseAuditFilter reads table, record_id, actor_id, from, to and limit.
// Times are RFC 3339.
func parseAuditFilter(q url.Values) (audit.Filter, error) {
	f := audit.Filter{
		TableName: q.Get("table"),
		RecordID:  q.Get("record_id"),
		ActorID:   q.Get("actor_id"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid from: %q", v)
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid to: %q", v)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("to must not be before from")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, fmt.Errorf("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// ListAuditLog handles GET /audit-log.
func (h *AuditHandlers) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	f, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	records, err := h.service.List(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	writeJSON(w, r, http.StatusOK, records)
}

// ExportAuditLog handles GET /audit-log/export?format=csv|json.
func (h *AuditHandlers) ExportAuditLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format, err := audit.ParseExportFormat(q.Get("format"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	f, err := parseAuditFilter(q)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	data, err := h.service.Export(r.Context(), p, audit.ExportOptions{Format: format, Filter: f})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("audit-log-%s.%s", time.Now().UTC().Format("20060102T150405Z"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to write audit export", "error", err)
	}
}

// VerifyAuditLog handles GET /audit-log/verify.
func (h *AuditHandlers) VerifyAuditLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	result, err := h.service.Verify(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !result.Valid {
		slog.WarnContext(r.Context(), "audit chain verification failed",
			"bad_seq", result.BadSeq, "reason", result.Reason)
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ArchiveAuditLog handles POST /audit-log/archive. The same query filters as
// GET /audit-log select the records to upload.
func (h *AuditHandlers) ArchiveAuditLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	f, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	res, err := h.service.Archive(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}
