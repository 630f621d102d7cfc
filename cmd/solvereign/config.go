package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(newCtx func() (*appContext, error)) *cobra.Command {
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration and its hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			if ctx.JSON {
				b, err := json.Marshal(ctx.Config)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "time_budget_s: %d\n", ctx.Config.TimeBudgetS)
			fmt.Fprintf(cmd.OutOrStdout(), "seed: %d\n", ctx.Config.Seed)
			fmt.Fprintf(cmd.OutOrStdout(), "max_weekly_hours: %.2f\n", ctx.Config.MaxWeeklyHours)
			fmt.Fprintf(cmd.OutOrStdout(), "min_rest_minutes: %d\n", ctx.Config.MinRestMinutes)
			fmt.Fprintf(cmd.OutOrStdout(), "freeze_horizon_min: %d\n", ctx.Config.FreezeHorizonMin)
			fmt.Fprintf(cmd.OutOrStdout(), "pt_penalty: %d\n", ctx.Config.PTPenalty)
			fmt.Fprintf(cmd.OutOrStdout(), "cap_quota_2er: %.2f\n", ctx.Config.CapQuota2ER)
			fmt.Fprintf(cmd.OutOrStdout(), "kill_switch: %v\n", ctx.Config.KillSwitch)
			fmt.Fprintf(cmd.OutOrStdout(), "schema_version: %s\n", ctx.Config.SchemaVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "hash: %s\n", ctx.Config.Hash())
			return nil
		},
	}

	root := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	root.AddCommand(show)
	return root
}
