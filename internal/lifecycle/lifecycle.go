// Package lifecycle implements spec.md §4.7's plan lifecycle: legal state
// transitions with write barriers on LOCKED/PUBLISHED, freeze-window
// enforcement, snapshot publish/supersede, and per-(tenant,plan) advisory
// locking so concurrent workers never race a single plan's transitions.
//
// The advisory locking is grounded directly on the teacher's cmd/bd/sync.go
// pattern (one gofrs/flock file per resource, TryLock, refuse if already
// held) generalized from one repo-wide sync lock to one lock per
// (tenant, plan_id).
package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/model"
)

// legalTransitions enumerates every allowed PlanState edge (spec.md §3).
var legalTransitions = map[model.PlanState][]model.PlanState{
	model.PlanDraft:    {model.PlanSolved, model.PlanFailed},
	model.PlanSolved:   {model.PlanApproved, model.PlanFailed},
	model.PlanApproved: {model.PlanPublished, model.PlanFailed},
	model.PlanPublished: {model.PlanLocked, model.PlanSuperseded},
	model.PlanLocked:    {},
	model.PlanFailed:    {},
	model.PlanSuperseded: {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to model.PlanState) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves plan.State to to, refusing immutable-state writes and
// illegal edges.
func Transition(plan *model.PlanVersion, to model.PlanState) error {
	if plan.State.Immutable() {
		return errs.New(errs.Policy, errs.CodePlanLocked, fmt.Sprintf("plan %s is %s and cannot transition", plan.ID, plan.State))
	}
	if !CanTransition(plan.State, to) {
		return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("illegal transition %s -> %s", plan.State, to))
	}
	plan.State = to
	return nil
}

// FreezeViolation reports whether changing a tour starting at tourStart
// violates fw, evaluated at now, absent an override token (spec.md §3: "any
// attempt to reassign, add, or remove a tour whose start_ts < now + horizon
// is a freeze violation unless an explicit override token is supplied").
func FreezeViolation(fw model.FreezeWindow, now, tourStart time.Time, overrideToken string) bool {
	if overrideToken != "" {
		return false
	}
	horizon := time.Duration(fw.HorizonMinutes) * time.Minute
	return tourStart.Before(now.Add(horizon))
}

// PublishSnapshot atomically supersedes prevActive (if any) and returns the
// new ACTIVE snapshot. Callers apply both writes (new snapshot ACTIVE, prior
// snapshot SUPERSEDED) within a single storage transaction; this function
// only computes the resulting values so the storage layer stays the sole
// owner of the transaction boundary (spec.md §4.7).
func PublishSnapshot(prevActive *model.Snapshot, next model.Snapshot) (model.Snapshot, *model.Snapshot) {
	next.Status = model.SnapshotActive
	if prevActive == nil {
		return next, nil
	}
	superseded := *prevActive
	superseded.Status = model.SnapshotSuperseded
	return next, &superseded
}

// LockManager hands out per-(tenant,plan_id) advisory file locks.
type LockManager struct {
	baseDir string
}

// NewLockManager roots every lock file under baseDir (created if absent).
func NewLockManager(baseDir string) (*LockManager, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create lock dir %s: %w", baseDir, err)
	}
	return &LockManager{baseDir: baseDir}, nil
}

// Lock acquires an exclusive, non-blocking advisory lock for one plan.
// Callers must Unlock the returned flock.Flock when done.
func (m *LockManager) Lock(tenant, planID string) (*flock.Flock, error) {
	path := filepath.Join(m.baseDir, tenant+"__"+planID+".lock")
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring plan lock %s: %w", path, err)
	}
	if !locked {
		return nil, errs.New(errs.Policy, errs.CodePlanLocked, "another operation holds the plan lock for "+tenant+"/"+planID)
	}
	return l, nil
}
