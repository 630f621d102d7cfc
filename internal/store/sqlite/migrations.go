package sqlite

import "database/sql"

// migration is one incremental, idempotent schema change applied after the
// base schema, mirroring the teacher's internal/storage/sqlite/migrations.go
// ordered-list-of-named-funcs pattern so future schema changes land the same
// way the teacher's do: additive, named, and run in a fixed order rather
// than edited into the base schema string.
type migration struct {
	Name string
	Func func(*sql.DB) error
}

var migrationsList = []migration{
	{"assignments_driver_covering_index", migrateAssignmentsDriverCoveringIndex},
}

// migrateAssignmentsDriverCoveringIndex adds the (driver_id, day) index
// the rest/fatigue audit checks scan by once a deployment has accumulated
// enough plans for the planless idx_assignments_plan_driver index to stop
// being selective.
func migrateAssignmentsDriverCoveringIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_assignments_driver_day ON assignments(driver_id, day)`)
	return err
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return err
	}
	for _, m := range migrationsList {
		var name string
		err := db.QueryRow(`SELECT name FROM schema_migrations WHERE name = ?`, m.Name).Scan(&name)
		if err == nil {
			continue // already applied
		}
		if err != sql.ErrNoRows {
			return err
		}
		if err := m.Func(db); err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations(name) VALUES (?)`, m.Name); err != nil {
			return err
		}
	}
	return nil
}
