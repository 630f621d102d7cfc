// Package main implements the solvereign CLI: ingest, solve, lock, export,
// status, simulate, config, audit and evidence subcommands, one file per
// command, mirroring the teacher's cmd/bd layout.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/evidence"
	"github.com/DRNaser/solvereign/internal/killswitch"
	"github.com/DRNaser/solvereign/internal/lifecycle"
	"github.com/DRNaser/solvereign/internal/logging"
	"github.com/DRNaser/solvereign/internal/store"
	"github.com/DRNaser/solvereign/internal/store/sqlite"
)

// appContext consolidates every command's runtime dependencies into one
// struct, the same grouping the teacher's CommandContext uses in place of
// scattered package-level globals.
type appContext struct {
	DataDir string
	Tenant  string
	Site    string
	Actor   string
	JSON    bool

	Config config.Config
	Log    *logging.Logger
	Store  store.Store
	Locks  *lifecycle.LockManager
	Kill   *killswitch.Switch
	Evid   *evidence.DiskStore
}

// newAppContext resolves configuration and opens every backing resource a
// command might need. Callers Close it when done.
func newAppContext(dataDir, tenant, site, actor string, jsonOut bool) (*appContext, error) {
	if dataDir == "" {
		dataDir = defaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{
		FilePath: filepath.Join(dataDir, "solvereign.log.jsonl"),
		MinLevel: logging.LevelInfo,
	})

	st, err := sqlite.Open(filepath.Join(dataDir, "solvereign.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	locks, err := lifecycle.NewLockManager(filepath.Join(dataDir, "locks"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create lock manager: %w", err)
	}

	kill, err := killswitch.New(filepath.Join(dataDir, "kill_switch"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create kill switch: %w", err)
	}

	evid, err := evidence.NewDiskStore(filepath.Join(dataDir, "evidence"))
	if err != nil {
		_ = st.Close()
		_ = kill.Close()
		return nil, fmt.Errorf("create evidence store: %w", err)
	}

	return &appContext{
		DataDir: dataDir,
		Tenant:  tenant,
		Site:    site,
		Actor:   actor,
		JSON:    jsonOut,
		Config:  cfg,
		Log:     log,
		Store:   st,
		Locks:   locks,
		Kill:    kill,
		Evid:    evid,
	}, nil
}

func (a *appContext) Close() error {
	_ = a.Kill.Close()
	return a.Store.Close()
}

// defaultDataDir is ./.solvereign/data under the current working directory
// (parent directories are not searched, unlike
// internal/config.DiscoverConfigFile), or ./.solvereign-data when the
// working directory cannot be determined.
func defaultDataDir() string {
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".solvereign", "data")
	}
	return ".solvereign-data"
}
