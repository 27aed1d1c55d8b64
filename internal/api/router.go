package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/timeguard/internal/idempotency"
	"github.com/onnwee/timeguard/internal/middleware"
)

// RouterConfig wires handlers and middleware into the HTTP surface.
// Optional fields may be left nil.
type RouterConfig struct {
	Logger *slog.Logger

	// Authenticate resolves the caller for every route except the health checks
	// and /metrics. Required.
	Authenticate func(http.Handler) http.Handler

	Attendance *AttendanceHandlers
	Profiles   *ProfileHandlers
	Schedules  *ScheduleHandlers
	Policy     *PolicyHandlers
	Audit      *AuditHandlers
	Health     *HealthHandlers

	// Rate limiting for POST /clock-events.
	RateLimitStore middleware.RateLimitStore
	ClockLimit     middleware.RateLimitConfig

	// Idempotency enables Idempotency-Key replay on POST /clock-events.
	Idempotency idempotency.Repository

	Metrics     *middleware.Metrics
	Gatherer    prometheus.Gatherer
	ServiceName string // enables tracing when set

	CORSAllowedOrigins []string
	TrustProxyHeaders  bool
}

// NewRouter builds the handler chain:
// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> ClientIP -> mux.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler {
		return cfg.Authenticate(h)
	}

	clock := http.Handler(http.HandlerFunc(cfg.Attendance.CreateClockEvent))
	if cfg.RateLimitStore != nil {
		clock = middleware.RateLimiter(cfg.RateLimitStore, cfg.ClockLimit, middleware.PrincipalKeyFunc(), "/clock-events", cfg.Metrics)(clock)
	}
	// Replays are answered before the rate limiter counts them.
	if cfg.Idempotency != nil {
		clock = middleware.Idempotency(cfg.Idempotency)(clock)
	}
	mux.Handle("POST /clock-events", cfg.Authenticate(clock))
	mux.Handle("GET /me/events", authed(cfg.Attendance.ListMyEvents))

	mux.Handle("GET /me", authed(cfg.Profiles.Me))
	mux.Handle("GET /profiles", authed(cfg.Profiles.ListProfiles))
	mux.Handle("POST /profiles", authed(cfg.Profiles.CreateProfile))
	mux.Handle("GET /profiles/{id}", authed(cfg.Profiles.GetProfile))
	mux.Handle("PUT /profiles/{id}", authed(cfg.Profiles.UpdateProfile))

	mux.Handle("GET /schedules", authed(cfg.Schedules.ListSchedules))
	mux.Handle("POST /schedules", authed(cfg.Schedules.CreateSchedule))
	mux.Handle("PUT /schedules/{id}", authed(cfg.Schedules.UpdateSchedule))
	mux.Handle("DELETE /schedules/{id}", authed(cfg.Schedules.DeleteSchedule))

	mux.Handle("GET /ip-whitelist", authed(cfg.Policy.ListIPs))
	mux.Handle("POST /ip-whitelist", authed(cfg.Policy.CreateIP))
	mux.Handle("PUT /ip-whitelist/{id}", authed(cfg.Policy.UpdateIP))
	mux.Handle("DELETE /ip-whitelist/{id}", authed(cfg.Policy.DeleteIP))

	mux.Handle("GET /geo-fences", authed(cfg.Policy.ListFences))
	mux.Handle("POST /geo-fences", authed(cfg.Policy.CreateFence))
	mux.Handle("PUT /geo-fences/{id}", authed(cfg.Policy.UpdateFence))
	mux.Handle("DELETE /geo-fences/{id}", authed(cfg.Policy.DeleteFence))

	mux.Handle("GET /audit-log", authed(cfg.Audit.ListAuditLog))
	mux.Handle("GET /audit-log/export", authed(cfg.Audit.ExportAuditLog))
	mux.Handle("GET /audit-log/verify", authed(cfg.Audit.VerifyAuditLog))
	mux.Handle("POST /audit-log/archive", authed(cfg.Audit.ArchiveAuditLog))

	health := cfg.Health
	if health == nil {
		health = NewHealthHandlers(HealthHandlersConfig{})
	}
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Ready)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})

	var handler http.Handler = mux
	handler = middleware.ClientIP(cfg.TrustProxyHeaders)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.ServiceName != "" {
		handler = middleware.Tracing(cfg.ServiceName)(handler)
	}
	return middleware.RequestID(handler)
}
