package lifecycle

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DRNaser/solvereign/internal/model"
)

func TestCanTransitionHappyPath(t *testing.T) {
	cases := []struct {
		from, to model.PlanState
		want     bool
	}{
		{model.PlanDraft, model.PlanSolved, true},
		{model.PlanSolved, model.PlanApproved, true},
		{model.PlanApproved, model.PlanPublished, true},
		{model.PlanPublished, model.PlanLocked, true},
		{model.PlanPublished, model.PlanSuperseded, true},
		{model.PlanDraft, model.PlanPublished, false},
		{model.PlanLocked, model.PlanDraft, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%s,%s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTransitionRefusesImmutableState(t *testing.T) {
	plan := &model.PlanVersion{ID: "p1", State: model.PlanLocked}
	if err := Transition(plan, model.PlanSuperseded); err == nil {
		t.Fatalf("expected error transitioning out of LOCKED")
	}
}

func TestTransitionAppliesLegalEdge(t *testing.T) {
	plan := &model.PlanVersion{ID: "p1", State: model.PlanDraft}
	if err := Transition(plan, model.PlanSolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.State != model.PlanSolved {
		t.Fatalf("expected state SOLVED, got %s", plan.State)
	}
}

func TestFreezeViolationWithinHorizon(t *testing.T) {
	fw := model.FreezeWindow{HorizonMinutes: 720}
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	tourStart := now.Add(6 * time.Hour) // within the 12h default horizon
	if !FreezeViolation(fw, now, tourStart, "") {
		t.Fatalf("expected freeze violation for a tour 6h out under a 12h horizon")
	}
	if FreezeViolation(fw, now, tourStart, "override-token") {
		t.Fatalf("expected override token to suppress the freeze violation")
	}
}

func TestFreezeViolationOutsideHorizon(t *testing.T) {
	fw := model.FreezeWindow{HorizonMinutes: 720}
	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	tourStart := now.Add(48 * time.Hour)
	if FreezeViolation(fw, now, tourStart, "") {
		t.Fatalf("expected no freeze violation for a tour 48h out")
	}
}

func TestPublishSnapshotSupersedesPrevious(t *testing.T) {
	prev := &model.Snapshot{SnapshotID: "s1", Status: model.SnapshotActive}
	next := model.Snapshot{SnapshotID: "s2"}
	newActive, superseded := PublishSnapshot(prev, next)
	if newActive.Status != model.SnapshotActive {
		t.Fatalf("expected new snapshot ACTIVE, got %s", newActive.Status)
	}
	if superseded == nil || superseded.Status != model.SnapshotSuperseded {
		t.Fatalf("expected previous snapshot SUPERSEDED, got %+v", superseded)
	}
}

func TestPublishSnapshotFirstPublish(t *testing.T) {
	next := model.Snapshot{SnapshotID: "s1"}
	newActive, superseded := PublishSnapshot(nil, next)
	if newActive.Status != model.SnapshotActive || superseded != nil {
		t.Fatalf("expected no superseded snapshot on first publish, got %+v / %+v", newActive, superseded)
	}
}

func TestLockManagerRefusesConcurrentLock(t *testing.T) {
	dir := t.TempDir()
	m, err := NewLockManager(filepath.Join(dir, "locks"))
	if err != nil {
		t.Fatalf("NewLockManager: %v", err)
	}
	l1, err := m.Lock("tenant-a", "plan-1")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer func() { _ = l1.Unlock() }()

	if _, err := m.Lock("tenant-a", "plan-1"); err == nil {
		t.Fatalf("expected second lock attempt to fail while held")
	}

	if _, err := m.Lock("tenant-a", "plan-2"); err != nil {
		t.Fatalf("expected a different plan's lock to succeed, got %v", err)
	}
}
