package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/timeguard/internal/access"
)

type testLogEntry struct {
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Status      int    `json:"status"`
	Size        int    `json:"size"`
	RequestID   string `json:"request_id"`
	PrincipalID string `json:"principal_id"`
	ErrorCode   string `json:"error_code"`
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) testLogEntry {
	t.Helper()
	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := RequestID(Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/me/events", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := parseEntry(t, buf)
	if entry.Method != "GET" || entry.Path != "/me/events" {
		t.Errorf("unexpected method/path: %s %s", entry.Method, entry.Path)
	}
	if entry.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.Status)
	}
	if entry.Size != 5 {
		t.Errorf("expected size 5, got %d", entry.Size)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("expected request_id req-1, got %q", entry.RequestID)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected INFO level, got %s", entry.Level)
	}
}

func TestLogging_CapturesInnerPrincipalAndErrorCode(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetPrincipal(r.Context(), access.Principal{ID: "emp-1", Role: access.RoleEmployee})
		SetErrorCode(ctx, "location_denied")
		w.WriteHeader(http.StatusForbidden)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/clock-events", nil))

	entry := parseEntry(t, buf)
	if entry.PrincipalID != "emp-1" {
		t.Errorf("expected principal_id emp-1, got %q", entry.PrincipalID)
	}
	if entry.ErrorCode != "location_denied" {
		t.Errorf("expected error_code location_denied, got %q", entry.ErrorCode)
	}
	if entry.Level != "WARN" {
		t.Errorf("expected WARN level, got %s", entry.Level)
	}
}

func TestLogging_ServerErrorLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if entry := parseEntry(t, buf); entry.Level != "ERROR" {
		t.Errorf("expected ERROR level, got %s", entry.Level)
	}
}

func TestGetErrorCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if code := GetErrorCode(req.Context()); code != "" {
		t.Errorf("expected empty code, got %q", code)
	}
	ctx := SetErrorCode(req.Context(), "conflict")
	if code := GetErrorCode(ctx); code != "conflict" {
		t.Errorf("expected conflict, got %q", code)
	}
}

func TestRequestID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if captured == "" || rr.Header().Get(RequestIDHeader) != captured {
		t.Errorf("expected generated id echoed in header, got ctx=%q header=%q", captured, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "existing")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if captured != "existing" {
		t.Errorf("expected existing id to be reused, got %q", captured)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, string(bytes.Repeat([]byte("a"), maxRequestIDLength+1)))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(captured) > maxRequestIDLength {
		t.Errorf("oversized request id should be replaced, got length %d", len(captured))
	}
}
