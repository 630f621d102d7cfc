package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DRNaser/solvereign/internal/model"
	"github.com/DRNaser/solvereign/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solvereign.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePlan(id string) model.PlanVersion {
	return model.PlanVersion{
		ID:     id,
		Tenant: "tenant-a",
		Site:   "site-1",
		State:  model.PlanDraft,
		Columns: []model.Column{
			{DriverID: "drv-0", DriverType: model.DriverFTE, WeeklyMin: 2400, Cost: 100, Fingerprint: "fp-0"},
		},
		Assignments: []model.Assignment{
			{DriverID: "drv-0", TourInstanceID: "t1#1", Day: 1, StartMin: 480, EndMin: 600, BlockKind: model.BlockB1},
		},
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan := samplePlan("plan-1")

	if err := s.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	got, err := s.GetPlan(ctx, "tenant-a", "plan-1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.State != model.PlanDraft {
		t.Fatalf("expected DRAFT, got %s", got.State)
	}
	if len(got.Assignments) != 1 || got.Assignments[0].DriverID != "drv-0" {
		t.Fatalf("unexpected assignments: %+v", got.Assignments)
	}
	if len(got.Columns) != 1 || got.Columns[0].DriverID != "drv-0" {
		t.Fatalf("unexpected columns: %+v", got.Columns)
	}
}

func TestGetPlanUnknownReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetPlan(context.Background(), "tenant-a", "missing"); err == nil {
		t.Fatalf("expected ErrPlanNotFound")
	}
}

func TestTransitionPlanRefusesLocked(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	plan := samplePlan("plan-1")
	plan.State = model.PlanLocked
	if err := s.CreatePlan(ctx, plan); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.TransitionPlan(ctx, "tenant-a", "plan-1", model.PlanSuperseded); err == nil {
		t.Fatalf("expected TransitionPlan to refuse a LOCKED plan")
	}
}

func TestTransitionPlanAppliesEdge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.CreatePlan(ctx, samplePlan("plan-1")); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.TransitionPlan(ctx, "tenant-a", "plan-1", model.PlanSolved); err != nil {
		t.Fatalf("TransitionPlan: %v", err)
	}
	got, err := s.GetPlan(ctx, "tenant-a", "plan-1")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.State != model.PlanSolved {
		t.Fatalf("expected SOLVED, got %s", got.State)
	}
}

func TestPublishSnapshotSupersedesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"plan-1", "plan-2"} {
		p := samplePlan(id)
		p.State = model.PlanApproved
		if err := s.CreatePlan(ctx, p); err != nil {
			t.Fatalf("CreatePlan %s: %v", id, err)
		}
	}

	active1, superseded1, err := s.PublishSnapshot(ctx, "tenant-a", model.Snapshot{SnapshotID: "snap-1", Site: "site-1", PlanVersionID: "plan-1", VersionNumber: 1}, "alice")
	if err != nil {
		t.Fatalf("first PublishSnapshot: %v", err)
	}
	if active1.Status != model.SnapshotActive || superseded1 != nil {
		t.Fatalf("expected first publish to be ACTIVE with no superseded snapshot, got %+v / %+v", active1, superseded1)
	}

	active2, superseded2, err := s.PublishSnapshot(ctx, "tenant-a", model.Snapshot{SnapshotID: "snap-2", Site: "site-1", PlanVersionID: "plan-2", VersionNumber: 2}, "alice")
	if err != nil {
		t.Fatalf("second PublishSnapshot: %v", err)
	}
	if active2.Status != model.SnapshotActive {
		t.Fatalf("expected second snapshot ACTIVE, got %s", active2.Status)
	}
	if superseded2 == nil || superseded2.SnapshotID != "snap-1" || superseded2.Status != model.SnapshotSuperseded {
		t.Fatalf("expected snap-1 superseded, got %+v", superseded2)
	}

	plan1, err := s.GetPlan(ctx, "tenant-a", "plan-1")
	if err != nil {
		t.Fatalf("GetPlan plan-1: %v", err)
	}
	if plan1.State != model.PlanPublished {
		t.Fatalf("expected plan-1 PUBLISHED, got %s", plan1.State)
	}

	ok, broken, err := s.VerifyAuditChain(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("VerifyAuditChain: %v", err)
	}
	if !ok {
		t.Fatalf("expected intact audit chain, broken at seq %d", broken)
	}
}

func TestActiveSnapshotNoneYet(t *testing.T) {
	s := openTestStore(t)
	_, found, err := s.ActiveSnapshot(context.Background(), "tenant-a", "site-1")
	if err != nil {
		t.Fatalf("ActiveSnapshot: %v", err)
	}
	if found {
		t.Fatalf("expected no active snapshot yet")
	}
}

func TestFreezeWindowDefaultsWhenUnset(t *testing.T) {
	s := openTestStore(t)
	fw, err := s.FreezeWindow(context.Background(), "tenant-a", "site-1")
	if err != nil {
		t.Fatalf("FreezeWindow: %v", err)
	}
	if fw.HorizonMinutes != store.DefaultFreezeHorizonMinutes {
		t.Fatalf("expected default horizon %d, got %d", store.DefaultFreezeHorizonMinutes, fw.HorizonMinutes)
	}
}

func TestSetAndGetFreezeWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SetFreezeWindow(ctx, model.FreezeWindow{Tenant: "tenant-a", Site: "site-1", HorizonMinutes: 1440}); err != nil {
		t.Fatalf("SetFreezeWindow: %v", err)
	}
	fw, err := s.FreezeWindow(ctx, "tenant-a", "site-1")
	if err != nil {
		t.Fatalf("FreezeWindow: %v", err)
	}
	if fw.HorizonMinutes != 1440 {
		t.Fatalf("expected 1440, got %d", fw.HorizonMinutes)
	}
}

func TestAppendAuditEventChainsHashes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.AppendAuditEvent(ctx, "tenant-a", "TEST_EVENT", "alice", "INFO", map[string]any{"i": i}); err != nil {
			t.Fatalf("AppendAuditEvent %d: %v", i, err)
		}
	}
	ok, broken, err := s.VerifyAuditChain(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("VerifyAuditChain: %v", err)
	}
	if !ok {
		t.Fatalf("expected intact chain, broken at %d", broken)
	}
}

func TestVerifyAuditChainDetectsTamper(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.AppendAuditEvent(ctx, "tenant-a", "E1", "alice", "INFO", map[string]any{"a": 1}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := s.AppendAuditEvent(ctx, "tenant-a", "E2", "alice", "INFO", map[string]any{"a": 2}); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE audit_log SET details_json = '{"a":999}' WHERE tenant = 'tenant-a' AND seq = 1`); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	ok, broken, err := s.VerifyAuditChain(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("VerifyAuditChain: %v", err)
	}
	if ok || broken != 1 {
		t.Fatalf("expected chain broken at seq 1, got ok=%v broken=%d", ok, broken)
	}
}

func TestListPlansFiltersByTenant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.CreatePlan(ctx, samplePlan("plan-1")); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	other := samplePlan("plan-2")
	other.Tenant = "tenant-b"
	if err := s.CreatePlan(ctx, other); err != nil {
		t.Fatalf("CreatePlan other: %v", err)
	}
	plans, err := s.ListPlans(ctx, store.PlanFilter{Tenant: "tenant-a"})
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(plans) != 1 || plans[0].ID != "plan-1" {
		t.Fatalf("expected only plan-1 for tenant-a, got %+v", plans)
	}
}
