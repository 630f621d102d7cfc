package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run builds a fresh command tree, executes it against args with out/errOut
// as its streams, and returns the process exit code spec.md §6 specifies:
// 0 success, 2 validation failure, 3 solver infeasible, 4 audit failure,
// 5 internal error.
func run(args []string, out, errOut *os.File) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(errOut, "error:", err)
	return exitCodeFor(err)
}

// exitCodeFor maps the error taxonomy (internal/errs) onto spec.md §6's
// exit codes. Policy errors (PLAN_LOCKED, FREEZE_VIOLATION,
// KILL_SWITCH_ACTIVE, ALREADY_PUBLISHED, ...) are input/state mismatches
// from the caller's point of view, so they share the validation-failure
// code rather than internal error. An unknown plan id
// (store.ErrPlanNotFound) is likewise caller input and exits 2.
func exitCodeFor(err error) int {
	var notFound store.ErrPlanNotFound
	if errors.As(err, &notFound) {
		return 2
	}
	var taxErr *errs.Error
	if !errors.As(err, &taxErr) {
		return 5
	}
	switch taxErr.Category {
	case errs.Validation, errs.Policy:
		return 2
	case errs.Solver:
		return 3
	case errs.Integrity:
		return 4
	default:
		return 5
	}
}

func newRootCmd() *cobra.Command {
	var dataDir, tenant, site, actor string
	var jsonOut bool

	root := &cobra.Command{
		Use:           "solvereign",
		Short:         "Deterministic driver-roster scheduling, audit and repair engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding solvereign's store/locks/evidence (default ./.solvereign/data)")
	root.PersistentFlags().StringVar(&tenant, "tenant", "", "tenant id")
	root.PersistentFlags().StringVar(&site, "site", "", "site id")
	root.PersistentFlags().StringVar(&actor, "actor", "cli", "actor recorded on audit events")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit machine-readable JSON output")

	newCtx := func() (*appContext, error) {
		return newAppContext(dataDir, tenant, site, actor, jsonOut)
	}

	root.AddCommand(
		newIngestCmd(newCtx),
		newSolveCmd(newCtx),
		newLockCmd(newCtx),
		newExportCmd(newCtx),
		newStatusCmd(newCtx),
		newSimulateCmd(newCtx),
		newConfigCmd(newCtx),
		newAuditCmd(newCtx),
		newEvidenceCmd(newCtx),
	)
	return root
}
