package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/lifecycle"
	"github.com/DRNaser/solvereign/internal/model"
	"github.com/DRNaser/solvereign/internal/repair"
)

// simulateScenario is the structured shape `simulate` reads: a base plan id
// plus a set of driver absences to preview against it.
type simulateScenario struct {
	PlanID   string          `json:"plan_id"`
	Now      *time.Time      `json:"now,omitempty"`
	Absences []repair.Absence `json:"absences"`
}

func newSimulateCmd(newCtx func() (*appContext, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario-file>",
		Short: "Preview a repair for a driver-absence scenario, without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("read %s: %v", args[0], err))
			}
			var scenario simulateScenario
			if err := json.Unmarshal(raw, &scenario); err != nil {
				return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("parse %s: %v", args[0], err))
			}

			plan, err := ctx.Store.GetPlan(cmd.Context(), ctx.Tenant, scenario.PlanID)
			if err != nil {
				return err
			}
			rec, err := loadForecast(ctx.DataDir, ctx.Tenant, ctx.Site, plan.ForecastVersion)
			if err != nil {
				return err
			}
			instanceByID := make(map[string]model.TourInstance, len(rec.Instances))
			for _, ti := range rec.Instances {
				instanceByID[ti.ID()] = ti
			}

			fw, err := ctx.Store.FreezeWindow(cmd.Context(), ctx.Tenant, ctx.Site)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if scenario.Now != nil {
				now = *scenario.Now
			}
			freezeCheck := func(tourStart time.Time) bool {
				return lifecycle.FreezeViolation(fw, now, tourStart, "")
			}

			result := repair.Preview(plan, instanceByID, scenario.Absences, now, ctx.Config.MinRestMinutes, freezeCheck, ctx.Config.Hash(), ctx.Config.Seed)

			if ctx.JSON {
				b, _ := json.Marshal(result)
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verdict: %s\n", result.Verdict)
			fmt.Fprintf(cmd.OutOrStdout(), "uncovered: %d -> %d\n", result.Summary.UncoveredBefore, result.Summary.UncoveredAfter)
			fmt.Fprintf(cmd.OutOrStdout(), "churn: %d drivers, %d assignments\n", result.Summary.ChurnDriverCount, result.Summary.ChurnAssignmentCount)
			return nil
		},
	}
	return cmd
}
