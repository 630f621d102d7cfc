package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/blockbuilder"
	"github.com/DRNaser/solvereign/internal/colgen"
	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/fingerprint"
	"github.com/DRNaser/solvereign/internal/model"
	"github.com/DRNaser/solvereign/internal/portfolio"
)

func newSolveCmd(newCtx func() (*appContext, error)) *cobra.Command {
	var seed int64
	var timeBudgetS int

	cmd := &cobra.Command{
		Use:   "solve <forecast_version>",
		Short: "Solve a roster plan for an ingested forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			if ctx.Kill.Active() {
				return errs.New(errs.Policy, errs.CodeKillSwitchActive, "kill switch is active; solve refused")
			}

			rec, err := loadForecast(ctx.DataDir, ctx.Tenant, ctx.Site, args[0])
			if err != nil {
				return errs.Wrap(errs.Validation, errs.CodeInvalidInput, err)
			}

			cfg := ctx.Config
			if seed != 0 {
				cfg.Seed = seed
			}
			if timeBudgetS != 0 {
				cfg.TimeBudgetS = timeBudgetS
			}

			pool := buildPool(rec.Instances, cfg)
			outcome, err := portfolio.Run(rec.Instances, pool, cfg)
			if err != nil {
				return err
			}

			plan := model.PlanVersion{
				ID:               uuid.NewString(),
				Tenant:           ctx.Tenant,
				Site:             ctx.Site,
				ForecastVersion:  rec.Forecast.ForecastVersion,
				Seed:             cfg.Seed,
				SolverConfigHash: cfg.Hash(),
				State:            model.PlanSolved,
				Assignments:      outcome.Result.Assignments,
				Columns:          outcome.Result.Columns,
			}
			plan.OutputHash = canonicalPlanHash(plan)

			if err := ctx.Store.CreatePlan(cmd.Context(), plan); err != nil {
				return err
			}
			if err := ctx.Store.AppendAuditEvent(cmd.Context(), ctx.Tenant, "PLAN_SOLVED", ctx.Actor, "INFO", map[string]any{
				"plan_id":    plan.ID,
				"path":       string(outcome.PathUsed),
				"drivers":    outcome.Result.DriversTotal,
				"escalated":  outcome.Escalated,
				"fallback":   outcome.Result.Fallback,
				"output_hash": plan.OutputHash,
			}); err != nil {
				return err
			}

			if ctx.JSON {
				b, _ := json.Marshal(map[string]any{"plan_id": plan.ID, "drivers": outcome.Result.DriversTotal, "path": outcome.PathUsed})
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s solved: %d drivers, path=%s, escalated=%v\n", plan.ID, outcome.Result.DriversTotal, outcome.PathUsed, outcome.Escalated)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the configured PRNG seed")
	cmd.Flags().IntVar(&timeBudgetS, "time-budget-s", 0, "override the configured total solve time budget")
	return cmd
}

// buildPool expands per-day blocks for every day present in instances,
// matching internal/blockbuilder's per-day contract: one BuildBlocks call
// per calendar day, keyed into the colgen.Pool column generation draws from.
func buildPool(instances []model.TourInstance, cfg config.Config) colgen.Pool {
	byDay := make(map[int][]model.TourInstance)
	for _, ti := range instances {
		byDay[ti.Day] = append(byDay[ti.Day], ti)
	}
	caps := blockbuilder.DefaultCaps()
	pool := make(colgen.Pool, len(byDay))
	for day, dayInstances := range byDay {
		pool[day] = blockbuilder.BuildBlocks(day, dayInstances, caps, cfg)
	}
	return pool
}

// canonicalPlanHash implements spec.md §6's canonical plan JSON: stable key
// order {plan_version_id, forecast_version_id, seed, config_hash, drivers[],
// assignments[]}, canonicalized the same way internal/evidence does before
// hashing.
func canonicalPlanHash(p model.PlanVersion) string {
	type canonical struct {
		PlanVersionID     string             `json:"plan_version_id"`
		ForecastVersionID string             `json:"forecast_version_id"`
		Seed              int64              `json:"seed"`
		ConfigHash        string             `json:"config_hash"`
		Drivers           []model.Column     `json:"drivers"`
		Assignments       []model.Assignment `json:"assignments"`
	}
	b, err := json.Marshal(canonical{
		PlanVersionID:     p.ID,
		ForecastVersionID: p.ForecastVersion,
		Seed:              p.Seed,
		ConfigHash:        p.SolverConfigHash,
		Drivers:           p.Columns,
		Assignments:       p.Assignments,
	})
	if err != nil {
		return ""
	}
	return fingerprint.SHA256Hex(fingerprint.Canonicalize(string(b)))
}
