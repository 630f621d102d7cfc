// Package sqlite implements internal/store.Store on top of
// github.com/ncruces/go-sqlite3 (a pure-Go, no-cgo SQLite driver), the same
// driver the teacher depends on. Structurally this mirrors the teacher's
// internal/storage/sqlite package: an embedded DDL string (schema.go), a
// small ordered migrations list (migrations.go) for additive changes made
// after the base schema, and one file implementing the storage interface
// against *sql.DB with explicit transactions for anything that must be
// atomic.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/DRNaser/solvereign/internal/auditlog"
	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/lifecycle"
	"github.com/DRNaser/solvereign/internal/model"
	"github.com/DRNaser/solvereign/internal/store"
)

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies the
// base schema and any pending migrations, and returns a ready Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer WAL-less file; avoid SQLITE_BUSY storms
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema to %s: %w", path, err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations on %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreatePlan inserts plan, its columns, and its assignments in one
// transaction.
func (s *Store) CreatePlan(ctx context.Context, plan model.PlanVersion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create-plan tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state := plan.State
	if state == "" {
		state = model.PlanDraft
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plans (id, tenant, site, forecast_version, seed, solver_config_hash, output_hash, state, created_at, predecessor_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.Tenant, plan.Site, plan.ForecastVersion, plan.Seed, plan.SolverConfigHash, plan.OutputHash, string(state), createdAtOrNow(plan.CreatedAt), plan.PredecessorID,
	); err != nil {
		return fmt.Errorf("insert plan %s: %w", plan.ID, err)
	}

	for i, col := range plan.Columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO columns (plan_id, seq, driver_id, driver_type, weekly_min, cost, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			plan.ID, i, col.DriverID, string(col.DriverType), col.WeeklyMin, col.Cost, col.Fingerprint,
		); err != nil {
			return fmt.Errorf("insert column %d for plan %s: %w", i, plan.ID, err)
		}
	}

	for _, a := range plan.Assignments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (plan_id, driver_id, tour_instance_id, day, start_min, end_min, block_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			plan.ID, a.DriverID, a.TourInstanceID, a.Day, a.StartMin, a.EndMin, string(a.BlockKind),
		); err != nil {
			return fmt.Errorf("insert assignment %s for plan %s: %w", a.TourInstanceID, plan.ID, err)
		}
	}

	return tx.Commit()
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// GetPlan loads one plan with its columns and assignments.
func (s *Store) GetPlan(ctx context.Context, tenant, planID string) (model.PlanVersion, error) {
	var plan model.PlanVersion
	var state string
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant, site, forecast_version, seed, solver_config_hash, output_hash, state, created_at, predecessor_id
		FROM plans WHERE tenant = ? AND id = ?`, tenant, planID)
	if err := row.Scan(&plan.ID, &plan.Tenant, &plan.Site, &plan.ForecastVersion, &plan.Seed, &plan.SolverConfigHash, &plan.OutputHash, &state, &plan.CreatedAt, &plan.PredecessorID); err != nil {
		if err == sql.ErrNoRows {
			return model.PlanVersion{}, store.ErrPlanNotFound{Tenant: tenant, PlanID: planID}
		}
		return model.PlanVersion{}, fmt.Errorf("get plan %s: %w", planID, err)
	}
	plan.State = model.PlanState(state)

	rows, err := s.db.QueryContext(ctx, `
		SELECT driver_id, tour_instance_id, day, start_min, end_min, block_kind
		FROM assignments WHERE plan_id = ? ORDER BY day, start_min, tour_instance_id`, planID)
	if err != nil {
		return model.PlanVersion{}, fmt.Errorf("list assignments for plan %s: %w", planID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Assignment
		var kind string
		if err := rows.Scan(&a.DriverID, &a.TourInstanceID, &a.Day, &a.StartMin, &a.EndMin, &kind); err != nil {
			return model.PlanVersion{}, fmt.Errorf("scan assignment for plan %s: %w", planID, err)
		}
		a.BlockKind = model.BlockKind(kind)
		plan.Assignments = append(plan.Assignments, a)
	}
	if err := rows.Err(); err != nil {
		return model.PlanVersion{}, err
	}

	colRows, err := s.db.QueryContext(ctx, `
		SELECT driver_id, driver_type, weekly_min, cost, fingerprint
		FROM columns WHERE plan_id = ? ORDER BY seq`, planID)
	if err != nil {
		return model.PlanVersion{}, fmt.Errorf("list columns for plan %s: %w", planID, err)
	}
	defer colRows.Close()
	for colRows.Next() {
		var col model.Column
		var driverType string
		if err := colRows.Scan(&col.DriverID, &driverType, &col.WeeklyMin, &col.Cost, &col.Fingerprint); err != nil {
			return model.PlanVersion{}, fmt.Errorf("scan column for plan %s: %w", planID, err)
		}
		col.DriverType = model.DriverType(driverType)
		plan.Columns = append(plan.Columns, col)
	}
	return plan, colRows.Err()
}

// ListPlans returns plans for filter.Tenant (and filter.Site, if set),
// newest first, without their columns/assignments (callers that need those
// call GetPlan per id).
func (s *Store) ListPlans(ctx context.Context, filter store.PlanFilter) ([]model.PlanVersion, error) {
	query := `SELECT id, tenant, site, forecast_version, seed, solver_config_hash, output_hash, state, created_at, predecessor_id
		FROM plans WHERE tenant = ?`
	args := []any{filter.Tenant}
	if filter.Site != "" {
		query += ` AND site = ?`
		args = append(args, filter.Site)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []model.PlanVersion
	for rows.Next() {
		var p model.PlanVersion
		var state string
		if err := rows.Scan(&p.ID, &p.Tenant, &p.Site, &p.ForecastVersion, &p.Seed, &p.SolverConfigHash, &p.OutputHash, &state, &p.CreatedAt, &p.PredecessorID); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		p.State = model.PlanState(state)
		out = append(out, p)
	}
	return out, rows.Err()
}

// TransitionPlan moves a plan to state to, refusing the write if the plan
// is already LOCKED (trg_plans_immutable_locked enforces the same rule at
// the schema level as a second line of defense) or if from->to isn't a
// legal edge per internal/lifecycle.
func (s *Store) TransitionPlan(ctx context.Context, tenant, planID string, to model.PlanState) error {
	var current string
	if err := s.db.QueryRowContext(ctx, `SELECT state FROM plans WHERE tenant = ? AND id = ?`, tenant, planID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return store.ErrPlanNotFound{Tenant: tenant, PlanID: planID}
		}
		return fmt.Errorf("read plan state %s: %w", planID, err)
	}
	from := model.PlanState(current)
	if from == model.PlanLocked {
		return errs.New(errs.Policy, errs.CodePlanLocked, "plan "+planID+" is LOCKED and cannot transition")
	}
	if !lifecycle.CanTransition(from, to) {
		return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("illegal transition %s -> %s", from, to))
	}
	res, err := s.db.ExecContext(ctx, `UPDATE plans SET state = ? WHERE tenant = ? AND id = ?`, string(to), tenant, planID)
	if err != nil {
		return fmt.Errorf("update plan state %s: %w", planID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrPlanNotFound{Tenant: tenant, PlanID: planID}
	}
	return nil
}

// PublishSnapshot implements the atomic publish transaction of spec.md
// §4.7: insert the new ACTIVE snapshot, supersede the previous ACTIVE one
// for (tenant, site), flip the plan to PUBLISHED, and append one audit-log
// entry, all inside a single transaction.
func (s *Store) PublishSnapshot(ctx context.Context, tenant string, snap model.Snapshot, auditActor string) (model.Snapshot, *model.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Snapshot{}, nil, fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev *model.Snapshot
	row := tx.QueryRowContext(ctx, `
		SELECT snapshot_id, plan_version_id, version_number, status, published_at, published_by, freeze_until
		FROM snapshots WHERE tenant = ? AND site = ? AND status = 'ACTIVE'`, tenant, snap.Site)
	var p model.Snapshot
	p.Tenant = tenant
	p.Site = snap.Site
	var statusStr string
	var freezeUntil sql.NullTime
	switch err := row.Scan(&p.SnapshotID, &p.PlanVersionID, &p.VersionNumber, &statusStr, &p.PublishedAt, &p.PublishedBy, &freezeUntil); err {
	case nil:
		p.Status = model.SnapshotStatus(statusStr)
		if freezeUntil.Valid {
			p.FreezeUntil = freezeUntil.Time
		}
		prev = &p
	case sql.ErrNoRows:
		prev = nil
	default:
		return model.Snapshot{}, nil, fmt.Errorf("read active snapshot: %w", err)
	}

	if prev != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE snapshots SET status = 'SUPERSEDED' WHERE snapshot_id = ?`, prev.SnapshotID); err != nil {
			return model.Snapshot{}, nil, fmt.Errorf("supersede snapshot %s: %w", prev.SnapshotID, err)
		}
	}

	snap.Status = model.SnapshotActive
	if snap.PublishedAt.IsZero() {
		snap.PublishedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, tenant, site, plan_version_id, version_number, status, published_at, published_by, freeze_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotID, tenant, snap.Site, snap.PlanVersionID, snap.VersionNumber, string(snap.Status), snap.PublishedAt, snap.PublishedBy, nullableTime(snap.FreezeUntil),
	); err != nil {
		return model.Snapshot{}, nil, fmt.Errorf("insert snapshot %s: %w", snap.SnapshotID, err)
	}

	if err := transitionPlanTx(ctx, tx, tenant, snap.PlanVersionID, model.PlanPublished); err != nil {
		return model.Snapshot{}, nil, err
	}

	details := map[string]any{"snapshot_id": snap.SnapshotID, "plan_version_id": snap.PlanVersionID, "version_number": snap.VersionNumber}
	if err := appendAuditEventTx(ctx, tx, tenant, "PLAN_PUBLISHED", auditActor, string(auditlog.SeverityInfo), details); err != nil {
		return model.Snapshot{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return model.Snapshot{}, nil, fmt.Errorf("commit publish tx: %w", err)
	}
	if prev != nil {
		superseded := *prev
		superseded.Status = model.SnapshotSuperseded
		return snap, &superseded, nil
	}
	return snap, nil, nil
}

func transitionPlanTx(ctx context.Context, tx *sql.Tx, tenant, planID string, to model.PlanState) error {
	var current string
	if err := tx.QueryRowContext(ctx, `SELECT state FROM plans WHERE tenant = ? AND id = ?`, tenant, planID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return store.ErrPlanNotFound{Tenant: tenant, PlanID: planID}
		}
		return fmt.Errorf("read plan state %s: %w", planID, err)
	}
	from := model.PlanState(current)
	if from == model.PlanLocked {
		return errs.New(errs.Policy, errs.CodePlanLocked, "plan "+planID+" is LOCKED and cannot transition")
	}
	if !lifecycle.CanTransition(from, to) {
		return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("illegal transition %s -> %s", from, to))
	}
	if _, err := tx.ExecContext(ctx, `UPDATE plans SET state = ? WHERE tenant = ? AND id = ?`, string(to), tenant, planID); err != nil {
		return fmt.Errorf("update plan state %s: %w", planID, err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// ActiveSnapshot returns the current ACTIVE snapshot for (tenant, site).
func (s *Store) ActiveSnapshot(ctx context.Context, tenant, site string) (model.Snapshot, bool, error) {
	var snap model.Snapshot
	var statusStr string
	var freezeUntil sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT snapshot_id, plan_version_id, version_number, status, published_at, published_by, freeze_until
		FROM snapshots WHERE tenant = ? AND site = ? AND status = 'ACTIVE'`, tenant, site)
	switch err := row.Scan(&snap.SnapshotID, &snap.PlanVersionID, &snap.VersionNumber, &statusStr, &snap.PublishedAt, &snap.PublishedBy, &freezeUntil); err {
	case nil:
		snap.Tenant = tenant
		snap.Site = site
		snap.Status = model.SnapshotStatus(statusStr)
		if freezeUntil.Valid {
			snap.FreezeUntil = freezeUntil.Time
		}
		return snap, true, nil
	case sql.ErrNoRows:
		return model.Snapshot{}, false, nil
	default:
		return model.Snapshot{}, false, fmt.Errorf("read active snapshot for %s/%s: %w", tenant, site, err)
	}
}

// FreezeWindow returns the configured policy, or the spec default if unset.
func (s *Store) FreezeWindow(ctx context.Context, tenant, site string) (model.FreezeWindow, error) {
	fw := model.FreezeWindow{Tenant: tenant, Site: site, HorizonMinutes: store.DefaultFreezeHorizonMinutes}
	var until sql.NullTime
	row := s.db.QueryRowContext(ctx, `SELECT horizon_minutes, until FROM freeze_windows WHERE tenant = ? AND site = ?`, tenant, site)
	switch err := row.Scan(&fw.HorizonMinutes, &until); err {
	case nil:
		if until.Valid {
			fw.Until = until.Time
		}
		return fw, nil
	case sql.ErrNoRows:
		return fw, nil
	default:
		return model.FreezeWindow{}, fmt.Errorf("read freeze window %s/%s: %w", tenant, site, err)
	}
}

// SetFreezeWindow upserts the policy for (tenant, site).
func (s *Store) SetFreezeWindow(ctx context.Context, fw model.FreezeWindow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO freeze_windows (tenant, site, horizon_minutes, until) VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant, site) DO UPDATE SET horizon_minutes = excluded.horizon_minutes, until = excluded.until`,
		fw.Tenant, fw.Site, fw.HorizonMinutes, nullableTime(fw.Until),
	)
	if err != nil {
		return fmt.Errorf("upsert freeze window %s/%s: %w", fw.Tenant, fw.Site, err)
	}
	return nil
}

// AppendAuditEvent appends one hash-chained entry for tenant.
func (s *Store) AppendAuditEvent(ctx context.Context, tenant, eventType, user string, severity string, details map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := appendAuditEventTx(ctx, tx, tenant, eventType, user, severity, details); err != nil {
		return err
	}
	return tx.Commit()
}

// appendAuditEventTx computes the next (seq, prev_hash) for tenant within
// tx and inserts the new row, so it can be composed into a larger
// transaction (e.g. PublishSnapshot) or run standalone.
func appendAuditEventTx(ctx context.Context, tx *sql.Tx, tenant, eventType, user, severity string, details map[string]any) error {
	var seq int
	var prevHash string
	row := tx.QueryRowContext(ctx, `SELECT seq, hash FROM audit_log WHERE tenant = ? ORDER BY seq DESC LIMIT 1`, tenant)
	switch err := row.Scan(&seq, &prevHash); err {
	case nil:
		seq++
	case sql.ErrNoRows:
		seq = 1
		prevHash = auditlog.GenesisHash
	default:
		return fmt.Errorf("read last audit entry for %s: %w", tenant, err)
	}

	detailsBytes, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	ts := time.Now().UTC()
	hash := auditlog.ComputeHash(prevHash, ts, eventType, tenant, user, auditlog.Severity(severity), string(detailsBytes))

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (tenant, seq, ts, event_type, user, severity, details_json, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant, seq, ts, eventType, user, severity, string(detailsBytes), prevHash, hash,
	); err != nil {
		return fmt.Errorf("insert audit entry %d for %s: %w", seq, tenant, err)
	}
	return nil
}

// VerifyAuditChain re-derives every hash for tenant and reports the first
// broken seq, if any.
func (s *Store) VerifyAuditChain(ctx context.Context, tenant string) (bool, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, event_type, user, severity, details_json, prev_hash, hash
		FROM audit_log WHERE tenant = ? ORDER BY seq ASC`, tenant)
	if err != nil {
		return false, 0, fmt.Errorf("list audit log for %s: %w", tenant, err)
	}
	defer rows.Close()

	prev := auditlog.GenesisHash
	for rows.Next() {
		var seq int
		var ts time.Time
		var eventType, user, severity, detailsJSON, prevHash, hash string
		if err := rows.Scan(&seq, &ts, &eventType, &user, &severity, &detailsJSON, &prevHash, &hash); err != nil {
			return false, 0, fmt.Errorf("scan audit log row: %w", err)
		}
		if prevHash != prev {
			return false, seq, nil
		}
		want := auditlog.ComputeHash(prevHash, ts, eventType, tenant, user, auditlog.Severity(severity), detailsJSON)
		if want != hash {
			return false, seq, nil
		}
		prev = hash
	}
	if err := rows.Err(); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
