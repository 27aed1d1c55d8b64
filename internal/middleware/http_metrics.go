package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// collectionRoutes are the top-level path segments whose second segment is a
// record id.
var collectionRoutes = map[string]bool{
	"profiles":     true,
	"schedules":    true,
	"ip-whitelist": true,
	"geo-fences":   true,
}

// normalizePath maps concrete paths to route patterns so record ids do not
// explode label cardinality: /schedules/abc -> /schedules/{id}.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 2 && collectionRoutes[parts[0]] && parts[1] != "" {
		return "/" + parts[0] + "/{id}"
	}
	return path
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// HTTPMetrics records request duration, count and response size.
// /health, /ready and /metrics are skipped.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}
