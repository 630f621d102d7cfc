// Package store defines the Plan Store contract of spec.md §4.7: ownership
// of Plan Versions and Snapshots, immutability write barriers on
// LOCKED/PUBLISHED, atomic publish (new snapshot ACTIVE + predecessor
// SUPERSEDED + audit-log entry in one transaction), and freeze-window
// policy lookup.
//
// The interface/implementation split mirrors the teacher's
// internal/storage (interface) + internal/storage/sqlite (implementation)
// layering, so callers depend on Store rather than a concrete driver.
package store

import (
	"context"

	"github.com/DRNaser/solvereign/internal/model"
)

// PlanFilter narrows ListPlans to one tenant and, optionally, one site.
type PlanFilter struct {
	Tenant string
	Site   string
}

// Store is the full Plan Store & Evidence surface a solver/governance
// caller needs. A tenant is required on every call: rows are scoped by
// tenant at the schema level, never filtered client-side.
type Store interface {
	// CreatePlan inserts a new plan in plan.State (DRAFT when empty) along
	// with its columns and assignments.
	CreatePlan(ctx context.Context, plan model.PlanVersion) error

	// GetPlan fetches one plan (with its columns and assignments) scoped
	// to tenant.
	GetPlan(ctx context.Context, tenant, planID string) (model.PlanVersion, error)

	// ListPlans returns every plan matching filter, newest first.
	ListPlans(ctx context.Context, filter PlanFilter) ([]model.PlanVersion, error)

	// TransitionPlan moves a plan to a new state, refusing the write if
	// the current state is LOCKED or PUBLISHED (spec.md §4.7
	// "Immutability") or if the edge is illegal (internal/lifecycle
	// governs which edges are legal; the storage layer re-checks the
	// immutability half of that guard so no caller can bypass it by
	// skipping internal/lifecycle).
	TransitionPlan(ctx context.Context, tenant, planID string, to model.PlanState) error

	// PublishSnapshot atomically: inserts the new ACTIVE snapshot,
	// supersedes the tenant/site's previous ACTIVE snapshot (if any),
	// transitions the plan to PUBLISHED, and appends one audit-log entry
	// — all within a single transaction (spec.md §4.7 "Snapshots").
	PublishSnapshot(ctx context.Context, tenant string, snap model.Snapshot, auditActor string) (active model.Snapshot, superseded *model.Snapshot, err error)

	// ActiveSnapshot returns the current ACTIVE snapshot for (tenant,
	// site), or (model.Snapshot{}, false, nil) if none has published yet.
	ActiveSnapshot(ctx context.Context, tenant, site string) (model.Snapshot, bool, error)

	// FreezeWindow returns the configured freeze policy for (tenant,
	// site), or the spec default (720 minutes, zero Until) if none has
	// been set.
	FreezeWindow(ctx context.Context, tenant, site string) (model.FreezeWindow, error)

	// SetFreezeWindow upserts the freeze policy for (tenant, site).
	SetFreezeWindow(ctx context.Context, fw model.FreezeWindow) error

	// AppendAuditEvent appends one audit-log entry for tenant, chaining
	// its hash to the tenant's last entry. Serialized per tenant so the
	// chain is never written out of order by concurrent callers (spec.md
	// §5 "Audit-log append is serialized per tenant").
	AppendAuditEvent(ctx context.Context, tenant, eventType, user string, severity string, details map[string]any) error

	// VerifyAuditChain re-walks every entry for tenant and reports
	// whether the chain is intact, and the first broken sequence number
	// if not (0 if ok).
	VerifyAuditChain(ctx context.Context, tenant string) (ok bool, brokenSeq int, err error)

	// Close releases the underlying connection.
	Close() error
}

// DefaultFreezeHorizonMinutes is the spec default when no policy row
// exists for a (tenant, site) yet.
const DefaultFreezeHorizonMinutes = 720

// ErrPlanNotFound signals GetPlan found no matching row.
type ErrPlanNotFound struct {
	Tenant, PlanID string
}

func (e ErrPlanNotFound) Error() string {
	return "plan not found: tenant=" + e.Tenant + " id=" + e.PlanID
}
