package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/forecast"
)

// ingestFile is the structured shape `ingest` reads: forecast_version plus
// already-parsed template rows. Text/CSV parsing itself is an out-of-scope
// external collaborator (spec.md §1); this file format is what that parser
// is expected to produce.
type ingestFile struct {
	ForecastVersion string                    `json:"forecast_version"`
	Templates       []forecast.TemplateInput `json:"templates"`
}

func newIngestCmd(newCtx func() (*appContext, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a structured forecast file and expand its tour instances",
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
			var in ingestFile
			if err := json.Unmarshal(raw, &in); err != nil {
				return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("parse %s: %v", args[0], err))
			}

			fc, instances, err := forecast.IngestForecast(ctx.Tenant, ctx.Site, in.ForecastVersion, in.Templates)
			if err != nil {
				return err
			}
			if err := saveForecast(ctx.DataDir, fc, instances); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested forecast %s: %d templates, %d instances\n", fc.ForecastVersion, len(fc.Templates), len(instances))
			return ctx.Store.AppendAuditEvent(cmd.Context(), ctx.Tenant, "FORECAST_INGESTED", ctx.Actor, "INFO", map[string]any{
				"forecast_version": fc.ForecastVersion,
				"templates":        len(fc.Templates),
				"instances":        len(instances),
			})
		},
	}
	return cmd
}
