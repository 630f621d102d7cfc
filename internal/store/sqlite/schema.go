package sqlite

// schema is applied once at Open time via CREATE TABLE IF NOT EXISTS,
// following the teacher's internal/storage/sqlite/schema.go convention of a
// single embedded DDL string plus CHECK constraints expressing invariants
// the application layer must not violate silently.
const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS plans (
    id                 TEXT PRIMARY KEY,
    tenant             TEXT NOT NULL,
    site               TEXT NOT NULL,
    forecast_version   TEXT NOT NULL DEFAULT '',
    seed               INTEGER NOT NULL DEFAULT 0,
    solver_config_hash TEXT NOT NULL DEFAULT '',
    output_hash        TEXT NOT NULL DEFAULT '',
    state              TEXT NOT NULL DEFAULT 'DRAFT'
                       CHECK (state IN ('DRAFT','SOLVED','APPROVED','PUBLISHED','LOCKED','FAILED','SUPERSEDED')),
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    predecessor_id     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_plans_tenant_site ON plans(tenant, site);
CREATE INDEX IF NOT EXISTS idx_plans_tenant_state ON plans(tenant, state);

-- Immutability write barrier (spec.md 4.7): once a plan is LOCKED or
-- PUBLISHED, no UPDATE may change its state column again except the one
-- legal PUBLISHED -> SUPERSEDED/LOCKED edge, which the repository performs
-- by re-checking old.state in application code before issuing the UPDATE;
-- this trigger is the storage-layer backstop for LOCKED plans only (it does
-- not restrict PUBLISHED rows), for callers that bypass the repository
-- entirely (e.g. a stray migration or ad-hoc SQL console).
CREATE TRIGGER IF NOT EXISTS trg_plans_immutable_locked
BEFORE UPDATE OF state ON plans
WHEN OLD.state = 'LOCKED'
BEGIN
    SELECT RAISE(ABORT, 'plan is LOCKED and immutable');
END;

CREATE TABLE IF NOT EXISTS columns (
    plan_id      TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    seq          INTEGER NOT NULL,
    driver_id    TEXT NOT NULL,
    driver_type  TEXT NOT NULL CHECK (driver_type IN ('FTE','PT')),
    weekly_min   INTEGER NOT NULL DEFAULT 0,
    cost         INTEGER NOT NULL DEFAULT 0,
    fingerprint  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (plan_id, seq)
);

CREATE TABLE IF NOT EXISTS assignments (
    plan_id          TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    driver_id        TEXT NOT NULL,
    tour_instance_id TEXT NOT NULL,
    day              INTEGER NOT NULL,
    start_min        INTEGER NOT NULL,
    end_min          INTEGER NOT NULL,
    block_kind       TEXT NOT NULL CHECK (block_kind IN ('B1','B2_REG','B2_SPLIT','B3')),
    PRIMARY KEY (plan_id, tour_instance_id)
);

CREATE INDEX IF NOT EXISTS idx_assignments_plan_driver ON assignments(plan_id, driver_id);

CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id     TEXT PRIMARY KEY,
    tenant          TEXT NOT NULL,
    site            TEXT NOT NULL,
    plan_version_id TEXT NOT NULL REFERENCES plans(id),
    version_number  INTEGER NOT NULL,
    status          TEXT NOT NULL DEFAULT 'ACTIVE'
                    CHECK (status IN ('ACTIVE','SUPERSEDED','ARCHIVED')),
    published_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    published_by    TEXT NOT NULL DEFAULT '',
    freeze_until    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tenant_site_status ON snapshots(tenant, site, status);

CREATE TABLE IF NOT EXISTS freeze_windows (
    tenant          TEXT NOT NULL,
    site            TEXT NOT NULL,
    horizon_minutes INTEGER NOT NULL DEFAULT 720,
    until           DATETIME,
    PRIMARY KEY (tenant, site)
);

CREATE TABLE IF NOT EXISTS audit_log (
    tenant       TEXT NOT NULL,
    seq          INTEGER NOT NULL,
    ts           DATETIME NOT NULL,
    event_type   TEXT NOT NULL,
    user         TEXT NOT NULL DEFAULT '',
    severity     TEXT NOT NULL DEFAULT 'INFO',
    details_json TEXT NOT NULL DEFAULT '{}',
    prev_hash    TEXT NOT NULL,
    hash         TEXT NOT NULL,
    PRIMARY KEY (tenant, seq)
);

-- Audit-log append is serialized per tenant (spec.md 5): the repository
-- reads the last seq/hash and inserts the next row inside one transaction
-- on the store's single connection, and this UNIQUE constraint guarantees two racing writers can never both
-- succeed at claiming the same seq even if the advisory lock is skipped.
CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_log_tenant_seq ON audit_log(tenant, seq);
`
