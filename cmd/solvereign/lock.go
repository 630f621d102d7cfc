package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/auditengine"
	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/lifecycle"
	"github.com/DRNaser/solvereign/internal/model"
)

// lock is the CLI's one publish/lock gesture: spec.md §6's "minimum" CLI
// surface has no separate approve/publish command, so lock itself walks a
// solved plan through the audit gate, approval, publish (new ACTIVE
// snapshot) and finally LOCKED — all refused outright if the kill switch is
// active, per spec.md §3's kill-switch semantics.
func newLockCmd(newCtx func() (*appContext, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock <plan_id>",
		Short: "Audit-gate, publish and lock a solved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			if ctx.Kill.Active() {
				return errs.New(errs.Policy, errs.CodeKillSwitchActive, "kill switch is active; lock refused")
			}

			planID := args[0]
			fl, err := ctx.Locks.Lock(ctx.Tenant, planID)
			if err != nil {
				return err
			}
			defer fl.Unlock()

			plan, err := ctx.Store.GetPlan(cmd.Context(), ctx.Tenant, planID)
			if err != nil {
				return err
			}
			rec, err := loadForecast(ctx.DataDir, ctx.Tenant, ctx.Site, plan.ForecastVersion)
			if err != nil {
				return err
			}

			report := auditengine.RunAll(rec.Instances, plan.Assignments, plan.Columns, ctx.Config.MinRestMinutes, plan.OutputHash, plan.OutputHash, nil)
			if !report.AllPass() {
				return errs.New(errs.Integrity, errs.CodeAuditGateFailed, fmt.Sprintf("plan %s failed audit gates", planID))
			}

			if err := ctx.Store.TransitionPlan(cmd.Context(), ctx.Tenant, planID, model.PlanApproved); err != nil {
				return err
			}

			prevActive, found, err := ctx.Store.ActiveSnapshot(cmd.Context(), ctx.Tenant, ctx.Site)
			if err != nil {
				return err
			}
			nextVersion := 1
			var prevPtr *model.Snapshot
			if found {
				nextVersion = prevActive.VersionNumber + 1
				prevPtr = &prevActive
			}
			candidate := model.Snapshot{
				SnapshotID:    uuid.NewString(),
				Tenant:        ctx.Tenant,
				Site:          ctx.Site,
				PlanVersionID: planID,
				VersionNumber: nextVersion,
				PublishedBy:   ctx.Actor,
			}
			next, _ := lifecycle.PublishSnapshot(prevPtr, candidate)
			active, _, err := ctx.Store.PublishSnapshot(cmd.Context(), ctx.Tenant, next, ctx.Actor)
			if err != nil {
				return err
			}

			if err := ctx.Store.TransitionPlan(cmd.Context(), ctx.Tenant, planID, model.PlanLocked); err != nil {
				return err
			}
			if err := ctx.Store.AppendAuditEvent(cmd.Context(), ctx.Tenant, "PLAN_LOCKED", ctx.Actor, "WARN", map[string]any{
				"plan_id":     planID,
				"snapshot_id": active.SnapshotID,
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "plan %s published as snapshot %s (v%d) and locked\n", planID, active.SnapshotID, active.VersionNumber)
			return nil
		},
	}
	return cmd
}
