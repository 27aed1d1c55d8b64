// Package main is the entry point for the attendance API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/timeguard/internal/api"
	"github.com/onnwee/timeguard/internal/attendance"
	"github.com/onnwee/timeguard/internal/audit"
	"github.com/onnwee/timeguard/internal/auth"
	"github.com/onnwee/timeguard/internal/config"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/health"
	"github.com/onnwee/timeguard/internal/idempotency"
	"github.com/onnwee/timeguard/internal/jobs"
	"github.com/onnwee/timeguard/internal/middleware"
	"github.com/onnwee/timeguard/internal/policy"
	"github.com/onnwee/timeguard/internal/profile"
	"github.com/onnwee/timeguard/internal/schedule"
	"github.com/onnwee/timeguard/internal/tracing"
	"github.com/onnwee/timeguard/migrations"
)

const (
	serviceName    = "timeguard-api"
	serviceVersion = "0.1.0"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Timeguard API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	summary := make([]any, 0, 2*len(cfg.LogSummary()))
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSamplingRate,
		InsecureMode:   cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn, migrations.FS, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	auditMetrics := audit.NewMetrics()
	clockMetrics := attendance.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		httpMetrics.Register,
		auditMetrics.Register,
		clockMetrics.Register,
		jobMetrics.Register,
	} {
		if err := register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	tm := db.NewSQLTxManager(conn, logger)
	auditRepo := audit.NewPostgresRepository(conn)
	writer := audit.NewWriter(auditRepo, tm, auditMetrics, logger)

	profileRepo := profile.NewPostgresRepository(conn)
	profiles := profile.NewService(profileRepo, writer, logger)
	policies := policy.NewService(policy.NewPostgresIPRepository(conn), policy.NewPostgresFenceRepository(conn), writer, logger)
	schedules := schedule.NewService(schedule.NewPostgresRepository(conn), profileRepo, writer, logger)
	recorder := attendance.NewRecorder(attendance.NewPostgresRepository(conn), policies, writer, clockMetrics, logger)

	archiver, archiveChecker, err := newArchive(cfg)
	if err != nil {
		return err
	}

	store, redisClient, err := newRateLimitStore(cfg, httpMetrics)
	if err != nil {
		return err
	}
	var redisChecker api.HealthChecker
	if redisClient != nil {
		defer redisClient.Close()
		redisChecker = health.NewRedisChecker(redisClient)
	}
	idem := newIdempotencyRepository(redisClient)

	runner := jobs.NewRunner(logger, jobMetrics)
	for _, job := range backgroundJobs(cfg, auditRepo, archiver, store, idem) {
		runner.Add(job)
	}
	runner.Start(ctx)
	defer func() {
		stop()
		runner.Wait()
	}()

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	var traceName string
	if tracer.IsEnabled() {
		traceName = serviceName
	}
	handler := api.NewRouter(api.RouterConfig{
		Logger:       logger,
		Authenticate: auth.Authenticate(jwtService, profiles, api.WriteAuthError),
		Attendance:   api.NewAttendanceHandlers(recorder),
		Profiles:     api.NewProfileHandlers(profiles),
		Schedules:    api.NewScheduleHandlers(schedules),
		Policy:       api.NewPolicyHandlers(policies),
		Audit:        api.NewAuditHandlers(audit.NewService(auditRepo, archiver)),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:      health.NewDBChecker(conn),
			RedisChecker:   redisChecker,
			ArchiveChecker: archiveChecker,
		}),
		RateLimitStore: store,
		ClockLimit: middleware.RateLimitConfig{
			RequestsPerWindow: cfg.ClockRateLimitPerMinute,
			WindowDuration:    time.Minute,
		},
		Idempotency:        idem,
		Metrics:            httpMetrics,
		Gatherer:           reg,
		ServiceName:        traceName,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// newArchive builds the audit archiver and its bucket health check.
// Both are nil when no bucket is configured.
func newArchive(cfg *config.Config) (*audit.Archiver, api.HealthChecker, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil, nil
	}
	client, err := audit.NewS3Client(audit.ArchiveConfig{
		Bucket:          cfg.ArchiveBucket,
		Endpoint:        cfg.ArchiveEndpoint,
		Region:          cfg.ArchiveRegion,
		AccessKeyID:     cfg.ArchiveAccessKeyID,
		SecretAccessKey: cfg.ArchiveSecretAccessKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("audit archive: %w", err)
	}
	return audit.NewArchiver(client, cfg.ArchiveBucket), health.NewBucketChecker(client, cfg.ArchiveBucket), nil
}

// newRateLimitStore returns a Redis-backed store when REDIS_URL is set and an
// in-process store otherwise. The client is nil for the in-process store.
func newRateLimitStore(cfg *config.Config, m *middleware.Metrics) (middleware.RateLimitStore, *redis.Client, error) {
	if cfg.RedisURL == "" {
		return middleware.NewInMemoryRateLimitStore(), nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return middleware.NewRedisRateLimitStore(client).WithMetrics(m), client, nil
}

// newIdempotencyRepository shares the rate limiter's Redis client when one
// is configured.
func newIdempotencyRepository(client *redis.Client) idempotency.Repository {
	if client == nil {
		return idempotency.NewInMemoryRepository()
	}
	return idempotency.NewRedisRepository(client, idempotency.DefaultExpiry)
}

// backgroundJobs lists the periodic work for this configuration. Stores that
// expire their own keys (Redis) get no cleanup job.
func backgroundJobs(cfg *config.Config, auditRepo audit.Repository, archiver *audit.Archiver, store middleware.RateLimitStore, idem idempotency.Repository) []jobs.Job {
	var out []jobs.Job

	if cfg.AuditVerifyIntervalMinutes > 0 {
		out = append(out, jobs.Job{
			Name:     jobs.JobTypeAuditVerify,
			Interval: time.Duration(cfg.AuditVerifyIntervalMinutes) * time.Minute,
			Timeout:  5 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := audit.CheckChain(ctx, auditRepo)
				return err
			},
		})
	}

	if archiver != nil {
		out = append(out, jobs.Job{
			Name:     jobs.JobTypeAuditArchive,
			Interval: 24 * time.Hour,
			Timeout:  10 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := archiver.ArchivePreviousDay(ctx, auditRepo)
				return err
			},
		})
	}

	if mem, ok := store.(*middleware.InMemoryRateLimitStore); ok {
		out = append(out, jobs.Job{
			Name:     jobs.JobTypeRateLimitCleanup,
			Interval: time.Minute,
			Run: func(context.Context) error {
				mem.Cleanup()
				return nil
			},
		})
	}

	if sweeper, ok := idem.(idempotency.Sweeper); ok {
		out = append(out, jobs.Job{
			Name:     jobs.JobTypeIdempotencyCleanup,
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				_, err := idempotency.CleanupOldKeys(ctx, sweeper, idempotency.DefaultExpiry)
				return err
			},
		})
	}

	return out
}
