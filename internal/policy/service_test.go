package policy

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/onnwee/timeguard/internal/apperr"
	"github.com/onnwee/timeguard/internal/audit"
	"github.com/onnwee/timeguard/internal/db"
	"github.com/onnwee/timeguard/internal/geo"
	"github.com/onnwee/timeguard/internal/middleware"
)

var (
	admin    = access.Principal{ID: "11111111-1111-1111-1111-111111111111", Role: access.RoleAdmin}
	employee = access.Principal{ID: "22222222-2222-2222-2222-222222222222", Role: access.RoleEmployee}
)

type fixture struct {
	svc    *Service
	ips    *InMemoryIPRepository
	fences *InMemoryFenceRepository
	audit  *audit.InMemoryRepository
}

func newFixture() *fixture {
	ips := NewInMemoryIPRepository()
	fences := NewInMemoryFenceRepository()
	auditRepo := audit.NewInMemoryRepository()
	writer := audit.NewWriter(auditRepo, db.NewMemoryTxManager(), nil, nil)
	return &fixture{
		svc:    NewService(ips, fences, writer, nil),
		ips:    ips,
		fences: fences,
		audit:  auditRepo,
	}
}

func (f *fixture) records(t *testing.T) []*audit.Record {
	t.Helper()
	records, err := f.audit.Chain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func adminCtx() context.Context {
	return middleware.SetPrincipal(context.Background(), admin)
}

func fenceInput(name, lat, lng string, radius int64) FenceInput {
	la := geo.MustLatitude(lat)
	lo := geo.MustLongitude(lng)
	return FenceInput{Name: name, Latitude: &la, Longitude: &lo, RadiusMeters: radius}
}

func TestService_IPLifecycle(t *testing.T) {
	f := newFixture()
	ctx := adminCtx()

	e, err := f.svc.CreateIP(ctx, admin, IPInput{IPAddress: " ::ffff:1.2.3.4 ", Description: "office"})
	if err != nil {
		t.Fatalf("CreateIP failed: %v", err)
	}
	if e.IPAddress != "1.2.3.4" || e.CreatedBy != admin.ID {
		t.Errorf("unexpected entry %+v", e)
	}

	updated, err := f.svc.UpdateIP(ctx, admin, e.ID, IPInput{IPAddress: "5.6.7.8", Description: "branch"})
	if err != nil {
		t.Fatalf("UpdateIP failed: %v", err)
	}
	if updated.IPAddress != "5.6.7.8" || updated.Description != "branch" {
		t.Errorf("unexpected update %+v", updated)
	}

	if err := f.svc.DeleteIP(ctx, admin, e.ID); err != nil {
		t.Fatalf("DeleteIP failed: %v", err)
	}
	list, _ := f.svc.ListIPs(ctx, employee)
	if len(list) != 0 {
		t.Errorf("expected empty allowlist, got %d", len(list))
	}

	records := f.records(t)
	if len(records) != 3 {
		t.Fatalf("expected 3 audit records, got %d", len(records))
	}
	wantActions := []audit.Action{audit.ActionInsert, audit.ActionUpdate, audit.ActionDelete}
	for i, r := range records {
		if r.Action != wantActions[i] || r.TableName != IPTable || r.RecordID != e.ID {
			t.Errorf("record %d: got %s %s %s", i, r.Action, r.TableName, r.RecordID)
		}
	}

	var old IPEntry
	if err := json.Unmarshal(records[1].OldData, &old); err != nil {
		t.Fatal(err)
	}
	if old.IPAddress != "1.2.3.4" {
		t.Errorf("update old snapshot = %q, want 1.2.3.4", old.IPAddress)
	}
	var deleted IPEntry
	if err := json.Unmarshal(records[2].OldData, &deleted); err != nil {
		t.Fatal(err)
	}
	if deleted.IPAddress != "5.6.7.8" {
		t.Errorf("delete old snapshot = %q, want 5.6.7.8", deleted.IPAddress)
	}
}

func TestService_DuplicateIP(t *testing.T) {
	f := newFixture()
	ctx := adminCtx()

	if _, err := f.svc.CreateIP(ctx, admin, IPInput{IPAddress: "1.2.3.4"}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.CreateIP(ctx, admin, IPInput{IPAddress: "::ffff:1.2.3.4"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := len(f.records(t)); n != 1 {
		t.Errorf("expected 1 audit record, got %d", n)
	}
}

func TestService_InvalidIP(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateIP(adminCtx(), admin, IPInput{IPAddress: "1.2.3"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_EmployeeCannotWrite(t *testing.T) {
	f := newFixture()
	ctx := middleware.SetPrincipal(context.Background(), employee)

	if _, err := f.svc.CreateIP(ctx, employee, IPInput{IPAddress: "1.2.3.4"}); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("CreateIP: expected access denied, got %v", err)
	}
	if _, err := f.svc.CreateFence(ctx, employee, fenceInput("HQ", "10", "10", 5)); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("CreateFence: expected access denied, got %v", err)
	}
	if err := f.svc.DeleteFence(ctx, employee, "x"); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Errorf("DeleteFence: expected access denied, got %v", err)
	}
	if _, err := f.svc.ListFences(ctx, employee); err != nil {
		t.Errorf("ListFences should be open to employees, got %v", err)
	}
	if n := len(f.records(t)); n != 0 {
		t.Errorf("denied writes must not be audited, got %d", n)
	}
}

func TestService_FenceRadiusValidation(t *testing.T) {
	tests := []struct {
		name    string
		radius  int64
		wantErr bool
	}{
		{"negative radius", -1, true},
		{"zero radius", 0, true},
		{"radius one", 1, false},
		{"too large for column", 1 << 31, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.CreateFence(adminCtx(), admin, fenceInput("HQ", "10", "10", tt.radius))
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				fences, _ := f.fences.List(context.Background())
				if len(fences) != 0 || len(f.records(t)) != 0 {
					t.Error("rejected fence must leave no row and no audit record")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestService_FenceRequiresCoordinates(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateFence(adminCtx(), admin, FenceInput{Name: "HQ", RadiusMeters: 10})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_FenceLifecycleKeepsPrecision(t *testing.T) {
	f := newFixture()
	ctx := adminCtx()

	created, err := f.svc.CreateFence(ctx, admin, fenceInput("HQ", "40.71280001", "-74.0060001", 100))
	if err != nil {
		t.Fatalf("CreateFence failed: %v", err)
	}
	updated, err := f.svc.UpdateFence(ctx, admin, created.ID, fenceInput("HQ East", "40.71280002", "-74.0060002", 200))
	if err != nil {
		t.Fatalf("UpdateFence failed: %v", err)
	}
	if updated.Name != "HQ East" || updated.RadiusMeters != 200 {
		t.Errorf("unexpected update %+v", updated)
	}

	records := f.records(t)
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	if !strings.Contains(string(records[1].OldData), `"latitude":"40.71280001"`) {
		t.Errorf("old snapshot lost precision: %s", records[1].OldData)
	}
	if !strings.Contains(string(records[1].NewData), `"longitude":"-74.0060002"`) {
		t.Errorf("new snapshot lost precision: %s", records[1].NewData)
	}

	if err := f.svc.DeleteFence(ctx, admin, created.ID); err != nil {
		t.Fatalf("DeleteFence failed: %v", err)
	}
	if err := f.svc.DeleteFence(ctx, admin, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestService_Snapshot(t *testing.T) {
	f := newFixture()
	ctx := adminCtx()
	if _, err := f.svc.CreateIP(ctx, admin, IPInput{IPAddress: "1.2.3.4"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateFence(ctx, admin, fenceInput("HQ", "10", "10", 500)); err != nil {
		t.Fatal(err)
	}

	entries, fences, err := f.svc.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	lat, lng := coords("10.0", "10.0")
	if !Authorize(entries, fences, lat, lng, "1.2.3.4") {
		t.Error("expected snapshot to authorize the office location")
	}
}
