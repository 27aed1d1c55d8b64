package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a single run when a Job sets no Timeout.
const DefaultTimeout = 30 * time.Second

// Job is a unit of periodic background work.
type Job struct {
	// Name is the job_type metric label.
	Name string
	// Interval is the duration between runs.
	Interval time.Duration
	// Timeout for each run.
	Timeout time.Duration
	// Run performs one cycle.
	Run func(ctx context.Context) error
}

// Recorder receives job outcomes. *Metrics implements it.
type Recorder interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// Runner drives a set of jobs on their own tickers until its context ends.
type Runner struct {
	logger  *slog.Logger
	metrics Recorder

	mu      sync.Mutex
	jobs    []Job
	running bool
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(logger *slog.Logger, metrics Recorder) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, metrics: metrics}
}

// Add registers a job. Jobs added after Start are ignored.
func (r *Runner) Add(job Job) {
	if job.Timeout == 0 {
		job.Timeout = DefaultTimeout
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.logger.Warn("job added after start, ignoring", "job_type", job.Name)
		return
	}
	r.jobs = append(r.jobs, job)
}

// Start launches one goroutine per job and returns immediately.
// Jobs stop when ctx is cancelled; call Wait to block until they have.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	jobs := append([]Job(nil), r.jobs...)
	r.mu.Unlock()

	for _, job := range jobs {
		if job.Interval <= 0 {
			r.logger.Warn("job has no interval, not scheduling", "job_type", job.Name)
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("background jobs started", "count", len(jobs))
}

// Wait blocks until every job goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("background job stopping", "job_type", job.Name)
			return
		case <-ticker.C:
			_ = r.RunOnce(ctx, job)
		}
	}
}

// RunOnce executes job immediately under its timeout and records the outcome.
func (r *Runner) RunOnce(parentCtx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start).Seconds()

	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		errorType := ErrorTypeFailed
		if errors.Is(err, context.DeadlineExceeded) {
			errorType = ErrorTypeTimeout
		}
		if r.metrics != nil {
			r.metrics.IncJobErrors(job.Name, errorType)
		}
		r.logger.Error("background job failed",
			"job_type", job.Name,
			"error_type", errorType,
			"duration_seconds", duration,
			"error", err)
	} else {
		r.logger.Debug("background job completed",
			"job_type", job.Name,
			"duration_seconds", duration)
	}

	if r.metrics != nil {
		r.metrics.IncJobsTotal(job.Name, status)
		r.metrics.ObserveJobDuration(job.Name, duration)
	}
	return err
}
