package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/errs"
)

func newAuditCmd(newCtx func() (*appContext, error)) *cobra.Command {
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Re-walk the tenant's audit-log hash chain and report breaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			ok, brokenSeq, err := ctx.Store.VerifyAuditChain(cmd.Context(), ctx.Tenant)
			if err != nil {
				return err
			}

			if ctx.JSON {
				b, _ := json.Marshal(map[string]any{"ok": ok, "broken_seq": brokenSeq})
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			} else if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "audit chain ok")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "audit chain broken at seq %d\n", brokenSeq)
			}

			if !ok {
				return errs.New(errs.Integrity, errs.CodeHashChainBroken, fmt.Sprintf("audit chain broken at seq %d", brokenSeq))
			}
			return nil
		},
	}

	root := &cobra.Command{
		Use:   "audit",
		Short: "Audit-log integrity operations",
	}
	root.AddCommand(verify)
	return root
}
