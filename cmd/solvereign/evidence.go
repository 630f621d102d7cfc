package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/DRNaser/solvereign/internal/errs"
	"github.com/DRNaser/solvereign/internal/evidence"
)

func newEvidenceCmd(newCtx func() (*appContext, error)) *cobra.Command {
	show := &cobra.Command{
		Use:   "show <hash>",
		Short: "Print the manifest of a stored evidence pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCtx()
			if err != nil {
				return err
			}
			defer ctx.Close()

			hash := args[0]
			if !ctx.Evid.Has(hash) {
				return errs.New(errs.Validation, errs.CodeInvalidInput, fmt.Sprintf("no evidence pack stored under %s", hash))
			}
			archive, err := ctx.Evid.Get(hash)
			if err != nil {
				return err
			}
			manifest, err := readManifest(archive)
			if err != nil {
				return err
			}

			if ctx.JSON {
				b, _ := json.Marshal(map[string]any{"hash": hash, "manifest": manifest})
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			names := make([]string, 0, len(manifest.Files))
			for name := range manifest.Files {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(cmd.OutOrStdout(), "evidence pack %s\n", hash)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n", manifest.Files[name], name)
			}
			return nil
		},
	}

	root := &cobra.Command{
		Use:   "evidence",
		Short: "Inspect stored evidence packs",
	}
	root.AddCommand(show)
	return root
}

// readManifest extracts and parses manifest.json from a pack's zip archive
// bytes, the same layout internal/evidence.Pack.WriteZip produces.
func readManifest(archive []byte) (evidence.Manifest, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return evidence.Manifest{}, fmt.Errorf("open evidence archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "manifest.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return evidence.Manifest{}, fmt.Errorf("open manifest entry: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return evidence.Manifest{}, fmt.Errorf("read manifest entry: %w", err)
		}
		var manifest evidence.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return evidence.Manifest{}, fmt.Errorf("parse manifest entry: %w", err)
		}
		return manifest, nil
	}
	return evidence.Manifest{}, fmt.Errorf("archive has no manifest.json entry")
}
