package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_RunOnceRecordsOutcome(t *testing.T) {
	tests := []struct {
		name      string
		run       func(ctx context.Context) error
		status    string
		errorType string
	}{
		{
			name:   "success",
			run:    func(context.Context) error { return nil },
			status: StatusSuccess,
		},
		{
			name:      "failure",
			run:       func(context.Context) error { return errors.New("boom") },
			status:    StatusFailure,
			errorType: ErrorTypeFailed,
		},
		{
			name: "timeout",
			run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			status:    StatusFailure,
			errorType: ErrorTypeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics()
			r := NewRunner(discardLogger(), m)
			job := Job{Name: JobTypeAuditVerify, Timeout: 10 * time.Millisecond, Run: tt.run}

			err := r.RunOnce(context.Background(), job)
			if (err != nil) != (tt.status == StatusFailure) {
				t.Fatalf("RunOnce() error = %v, want status %s", err, tt.status)
			}
			if got := getCounterVecValue(m.jobsTotal, JobTypeAuditVerify, tt.status); got != 1 {
				t.Errorf("jobsTotal{%s} = %v, want 1", tt.status, got)
			}
			if got := getHistogramVecSampleCount(m.jobsDuration, JobTypeAuditVerify); got != 1 {
				t.Errorf("duration samples = %d, want 1", got)
			}
			if tt.errorType != "" {
				if got := getCounterVecValue(m.jobErrors, JobTypeAuditVerify, tt.errorType); got != 1 {
					t.Errorf("jobErrors{%s} = %v, want 1", tt.errorType, got)
				}
			}
		})
	}
}

func TestRunner_TicksUntilCancelled(t *testing.T) {
	var runs int32
	r := NewRunner(discardLogger(), nil)
	r.Add(Job{
		Name:     JobTypeRateLimitCleanup,
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&runs) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}

	if atomic.LoadInt32(&runs) < 2 {
		t.Errorf("expected at least 2 runs, got %d", runs)
	}
}

func TestRunner_SkipsJobWithoutInterval(t *testing.T) {
	var runs int32
	r := NewRunner(discardLogger(), nil)
	r.Add(Job{Name: JobTypeAuditArchive, Run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	r.Wait()

	if runs != 0 {
		t.Errorf("job without interval ran %d times", runs)
	}
}
