// Package evidence implements spec.md §4.7's evidence pack: on publish, a
// content-addressed archive containing canonical forecast, plan JSON,
// assignments CSV, audit results, KPIs, and a SHA-256 checksum manifest,
// referenced by hash from the plan rather than owned by it.
//
// There is no archiving library anywhere in the retrieved example pack
// (confirmed across every candidate repo's go.mod), so the archive itself
// is built on the standard library's archive/zip — the one component of
// this package built on stdlib by necessity; everything feeding into it
// (canonicalization, hashing) reuses internal/fingerprint the same way the
// rest of solvereign does.
package evidence

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/DRNaser/solvereign/internal/auditengine"
	"github.com/DRNaser/solvereign/internal/fingerprint"
	"github.com/DRNaser/solvereign/internal/model"
)

// fileNames of the archive members. WriteZip writes them in this fixed
// order and the manifest JSON lists them with sorted keys, so two packs
// built from identical inputs always produce byte-identical archives.
const (
	fileForecast    = "forecast.json"
	fileExec        = "plan.json"
	fileAssignments = "assignments.csv"
	fileAudit       = "audit.json"
	fileKPIs        = "kpis.json"
	fileManifest    = "manifest.json"
)

// Manifest records each archive member's content hash, so the manifest
// itself canonically represents the whole pack's content.
type Manifest struct {
	Files map[string]string `json:"files"` // name -> hex(sha256(content))
}

// Pack holds every evidence artifact for one published plan, already
// rendered to bytes, plus the manifest over them.
type Pack struct {
	Forecast    []byte
	Plan        []byte
	Assignments []byte
	Audit       []byte
	KPIs        []byte
	Manifest    Manifest
}

// Build renders every artifact for plan/forecast/auditReport/kpis and
// computes their checksums. KPIs is caller-supplied (solve/audit commands
// compute their own fleet-level metrics); this package only canonicalizes
// and hashes whatever is handed to it.
func Build(forecast model.Forecast, plan model.PlanVersion, auditReport auditengine.Report, kpis map[string]float64) (Pack, error) {
	forecastJSON, err := canonicalJSON(forecast)
	if err != nil {
		return Pack{}, fmt.Errorf("canonicalize forecast: %w", err)
	}
	planJSON, err := canonicalJSON(plan)
	if err != nil {
		return Pack{}, fmt.Errorf("canonicalize plan: %w", err)
	}
	assignmentsCSV, err := assignmentsToCSV(plan.Assignments)
	if err != nil {
		return Pack{}, fmt.Errorf("render assignments csv: %w", err)
	}
	auditJSON, err := canonicalJSON(auditReport)
	if err != nil {
		return Pack{}, fmt.Errorf("canonicalize audit report: %w", err)
	}
	kpisJSON, err := canonicalJSON(sortedKPIs(kpis))
	if err != nil {
		return Pack{}, fmt.Errorf("canonicalize kpis: %w", err)
	}

	p := Pack{Forecast: forecastJSON, Plan: planJSON, Assignments: assignmentsCSV, Audit: auditJSON, KPIs: kpisJSON}
	p.Manifest = Manifest{Files: map[string]string{
		fileForecast:    fingerprint.SHA256Hex(string(p.Forecast)),
		fileExec:        fingerprint.SHA256Hex(string(p.Plan)),
		fileAssignments: fingerprint.SHA256Hex(string(p.Assignments)),
		fileAudit:       fingerprint.SHA256Hex(string(p.Audit)),
		fileKPIs:        fingerprint.SHA256Hex(string(p.KPIs)),
	}}
	return p, nil
}

// sortedKPIs re-expresses a map as an ordered slice of pairs so its JSON
// rendering doesn't depend on Go's (already-sorted, but implicit) map key
// ordering convention — the manifest's canonicalization contract should be
// explicit, per fingerprint.Canonicalize's own stated rationale.
type kpiEntry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func sortedKPIs(kpis map[string]float64) []kpiEntry {
	names := make([]string, 0, len(kpis))
	for k := range kpis {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]kpiEntry, len(names))
	for i, n := range names {
		out[i] = kpiEntry{Name: n, Value: kpis[n]}
	}
	return out
}

// canonicalJSON marshals v and normalizes whitespace per
// fingerprint.Canonicalize, so hashing is stable across re-serialization.
func canonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []byte(fingerprint.Canonicalize(string(b))), nil
}

func assignmentsToCSV(assignments []model.Assignment) ([]byte, error) {
	sorted := append([]model.Assignment(nil), assignments...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DriverID != b.DriverID {
			return a.DriverID < b.DriverID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.StartMin < b.StartMin
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"driver_id", "tour_instance_id", "day", "start_min", "end_min", "block_kind"}); err != nil {
		return nil, err
	}
	for _, a := range sorted {
		row := []string{
			a.DriverID,
			a.TourInstanceID,
			strconv.Itoa(a.Day),
			strconv.Itoa(a.StartMin),
			strconv.Itoa(a.EndMin),
			string(a.BlockKind),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash is the pack's content address: SHA-256 of the canonical manifest
// JSON. Two packs with identical artifact bytes always hash identically.
func (p Pack) Hash() (string, error) {
	manifestJSON, err := canonicalJSON(p.Manifest)
	if err != nil {
		return "", fmt.Errorf("canonicalize manifest: %w", err)
	}
	return fingerprint.SHA256Hex(string(manifestJSON)), nil
}

// WriteZip serializes the pack as a zip archive (forecast/plan/assignments/
// audit/kpis/manifest, in that fixed order) and returns the archive bytes
// alongside its content hash.
func (p Pack) WriteZip() (archive []byte, hash string, err error) {
	hash, err = p.Hash()
	if err != nil {
		return nil, "", err
	}
	manifestJSON, err := canonicalJSON(p.Manifest)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name string
		data []byte
	}{
		{fileForecast, p.Forecast},
		{fileExec, p.Plan},
		{fileAssignments, p.Assignments},
		{fileAudit, p.Audit},
		{fileKPIs, p.KPIs},
		{fileManifest, manifestJSON},
	}
	for _, e := range entries {
		fw, err := zw.Create(e.name)
		if err != nil {
			return nil, "", fmt.Errorf("create zip entry %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return nil, "", fmt.Errorf("write zip entry %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("close zip archive: %w", err)
	}
	return buf.Bytes(), hash, nil
}
