package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/auditengine"
	"github.com/DRNaser/solvereign/internal/evidence"
	"github.com/DRNaser/solvereign/internal/model"
)

func newExportCmd(newCtx func() (*appContext, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <plan_id>",
		Short: "Build and store the evidence pack for a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			plan, err := ctx.Store.GetPlan(cmd.Context(), ctx.Tenant, args[0])
			if err != nil {
				return err
			}
			rec, err := loadForecast(ctx.DataDir, ctx.Tenant, ctx.Site, plan.ForecastVersion)
			if err != nil {
				return err
			}

			report := auditengine.RunAll(rec.Instances, plan.Assignments, plan.Columns, ctx.Config.MinRestMinutes, plan.OutputHash, plan.OutputHash, nil)
			kpis := planKPIs(plan)

			pack, err := evidence.Build(rec.Forecast, plan, report, kpis)
			if err != nil {
				return err
			}
			hash, err := ctx.Evid.Put(pack)
			if err != nil {
				return err
			}

			if err := ctx.Store.AppendAuditEvent(cmd.Context(), ctx.Tenant, "PLAN_EXPORTED", ctx.Actor, "INFO", map[string]any{
				"plan_id":       plan.ID,
				"evidence_hash": hash,
				"audit_pass":    report.AllPass(),
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "evidence pack %s written for plan %s (audit pass=%v)\n", hash, plan.ID, report.AllPass())
			return nil
		},
	}
	return cmd
}

func planKPIs(plan model.PlanVersion) map[string]float64 {
	var pt int
	for _, c := range plan.Columns {
		if c.DriverType == model.DriverPT {
			pt++
		}
	}
	kpis := map[string]float64{"drivers_total": float64(len(plan.Columns))}
	if len(plan.Columns) > 0 {
		kpis["pt_ratio"] = float64(pt) / float64(len(plan.Columns))
	}
	return kpis
}
