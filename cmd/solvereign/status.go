package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/store"
)

func newStatusCmd(newCtx func() (*appContext, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show plan counts, the active snapshot and kill-switch state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			plans, err := ctx.Store.ListPlans(cmd.Context(), store.PlanFilter{Tenant: ctx.Tenant, Site: ctx.Site})
			if err != nil {
				return err
			}
			active, found, err := ctx.Store.ActiveSnapshot(cmd.Context(), ctx.Tenant, ctx.Site)
			if err != nil {
				return err
			}

			if ctx.JSON {
				out := map[string]any{
					"plan_count":  len(plans),
					"kill_switch": ctx.Kill.Active(),
				}
				if found {
					out["active_snapshot"] = active.SnapshotID
				}
				b, _ := json.Marshal(out)
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "plans: %d\n", len(plans))
			if found {
				fmt.Fprintf(cmd.OutOrStdout(), "active snapshot: %s (plan %s, v%d)\n", active.SnapshotID, active.PlanVersionID, active.VersionNumber)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "active snapshot: none")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kill switch: %v\n", ctx.Kill.Active())
			return nil
		},
	}
	return cmd
}
