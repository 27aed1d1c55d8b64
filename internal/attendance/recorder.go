package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/audit"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/geo"
	"github.com/onnwee/timeguard/internal/policy"
	"github.com/onnwee/timeguard/internal/tracing"
	"github.com/onnwee/timeguard/internal/validate"
)

// PolicySource supplies the current location policy.
type PolicySource interface {
	Snapshot(ctx context.Context) ([]policy.IPEntry, []policy.GeoFence, error)
}

// Recorder accepts or rejects clock attempts and persists accepted ones
// together with their audit record.
type Recorder struct {
	repo    Repository
	policy  PolicySource
	audit   *audit.Writer
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a Recorder. metrics may be nil.
func NewRecorder(repo Repository, policy PolicySource, writer *audit.Writer, metrics *Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:    repo,
		policy:  policy,
		audit:   writer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Record checks and stores one clock event. The checks run in order:
// the caller must own the event, the type must be known, and the origin
// must satisfy the location policy. A rejected attempt writes nothing.
func (r *Recorder) Record(ctx context.Context, p access.Principal, in RecordInput) (ev *Event, err error) {
	start := r.now()
	ctx, endSpan := tracing.StartSpan(ctx, "attendance.record",
		attribute.String("attendance.type", string(in.Type)))
	defer func() {
		endSpan(err)
		if r.metrics != nil {
			r.metrics.ObserveDuration(r.now().Sub(start).Seconds())
			if err != nil {
				r.metrics.IncDenials(denialReason(err))
			}
		}
	}()

	if err := access.Check(p, access.ResourceTimeEntries, access.OpInsert, in.OwnerID); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, ErrInvalidEntryType
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, ErrPartialCoordinates
	}
	deviceInfo, err := normalizeDeviceInfo(in.DeviceInfo)
	if err != nil {
		return nil, err
	}
	notes, err := validate.Note(in.Note)
	if err != nil {
		return nil, err
	}

	entries, fences, err := r.policy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	decision := policy.Evaluate(entries, fences, in.Latitude, in.Longitude, in.IP)
	if !decision.Allowed() {
		tracing.AddEvent(ctx, "location_denied", attribute.String("reason", decision.Reason()))
		r.logger.WarnContext(ctx, "clock event denied",
			slog.String("principal_id", p.ID),
			slog.String("type", string(in.Type)),
			slog.String("reason", decision.Reason()),
			slog.String("ip_address", in.IP),
			slog.String("geohash", coarse(in.Latitude, in.Longitude)))
		return nil, &DeniedError{Reason: decision.Reason()}
	}

	now := db.Timestamp(r.now())
	ts := now
	if in.Timestamp != nil {
		ts = db.Timestamp(*in.Timestamp)
	}
	ev = &Event{
		ID:          uuid.NewString(),
		PrincipalID: in.OwnerID,
		Type:        in.Type,
		Timestamp:   ts,
		IPAddress:   in.IP,
		DeviceInfo:  deviceInfo,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Notes:       notes,
		CreatedAt:   now,
	}

	err = r.audit.Apply(ctx, Table, audit.ActionInsert, func(ctx context.Context) (audit.Change, error) {
		if err := r.repo.Insert(ctx, ev); err != nil {
			return audit.Change{}, err
		}
		return audit.Change{RecordID: ev.ID, New: ev}, nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrPersistence) {
			err = fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
		}
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.IncEvents(string(ev.Type))
	}
	r.logger.InfoContext(ctx, "clock event recorded",
		slog.String("event_id", ev.ID),
		slog.String("principal_id", ev.PrincipalID),
		slog.String("type", string(ev.Type)),
		slog.String("geohash", coarse(ev.Latitude, ev.Longitude)))
	return ev, nil
}

// ListMine returns the caller's events, newest first.
func (r *Recorder) ListMine(ctx context.Context, p access.Principal) ([]*Event, error) {
	if err := access.Check(p, access.ResourceTimeEntries, access.OpRead, p.ID); err != nil {
		return nil, err
	}
	events, err := r.repo.ListByPrincipal(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	return events, nil
}

// DeniedError is returned when the location policy rejects an attempt.
// It matches ErrLocationDenied with errors.Is.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrLocationDenied.Error(), e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrLocationDenied
}

func normalizeDeviceInfo(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidDeviceInfo
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, ErrInvalidDeviceInfo
	}
	return buf.Bytes(), nil
}

func coarse(lat *geo.Latitude, lng *geo.Longitude) string {
	if lat == nil || lng == nil {
		return ""
	}
	return geo.PointOf(*lat, *lng).Coarse()
}

func denialReason(err error) string {
	var denied *DeniedError
	switch {
	case errors.As(err, &denied):
		return denied.Reason
	case errors.Is(err, apperr.ErrAccessDenied):
		return "access"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
