package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// runCLI drives the real command tree in-process, the same way run() does,
// and returns its captured stdout/stderr plus exit code. Unlike the script
// transcripts, this lets a test capture a generated plan id from one
// command's output and feed it into the next.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)

	err := root.Execute()
	if err != nil {
		errBuf.WriteString("error: " + err.Error() + "\n")
		code = exitCodeFor(err)
	}
	return outBuf.String(), errBuf.String(), code
}

func writeIngestFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "forecast.json")
	body := `{
		"forecast_version": "fv-lifecycle",
		"templates": [
			{"TemplateID": "t1", "Day": 1, "StartMin": 360, "EndMin": 720, "CrossesMidnight": false, "Depot": "DEPOT-A", "Skill": "STANDARD", "Count": 2},
			{"TemplateID": "t2", "Day": 3, "StartMin": 420, "EndMin": 780, "CrossesMidnight": false, "Depot": "DEPOT-A", "Skill": "STANDARD", "Count": 2}
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0640); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLifecycleIngestSolveLockExport drives ingest -> solve -> lock ->
// export -> evidence show end to end against a fresh data directory,
// confirming each stage's output feeds the next and the audit chain stays
// intact throughout.
func TestLifecycleIngestSolveLockExport(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	fixtureDir := t.TempDir()
	forecastPath := writeIngestFixture(t, fixtureDir)

	flags := func(rest ...string) []string {
		base := []string{"--data-dir", dataDir, "--tenant", "t1", "--site", "s1", "--json"}
		return append(base, rest...)
	}

	out, stderr, code := runCLI(t, flags("ingest", forecastPath)...)
	if code != 0 {
		t.Fatalf("ingest failed (code %d): %s", code, stderr)
	}
	if out == "" {
		t.Fatal("ingest produced no output")
	}

	out, stderr, code = runCLI(t, flags("solve", "fv-lifecycle", "--seed", "7")...)
	if code != 0 {
		t.Fatalf("solve failed (code %d): %s", code, stderr)
	}
	var solveOut struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.Unmarshal([]byte(out), &solveOut); err != nil {
		t.Fatalf("parse solve output %q: %v", out, err)
	}
	if solveOut.PlanID == "" {
		t.Fatal("solve did not return a plan id")
	}

	_, stderr, code = runCLI(t, flags("lock", solveOut.PlanID)...)
	if code != 0 {
		t.Fatalf("lock failed (code %d): %s", code, stderr)
	}

	_, stderr, code = runCLI(t, flags("export", solveOut.PlanID)...)
	if code != 0 {
		t.Fatalf("export failed (code %d): %s", code, stderr)
	}

	_, stderr, code = runCLI(t, flags("audit", "verify")...)
	if code != 0 {
		t.Fatalf("audit verify failed (code %d): %s", code, stderr)
	}

	out, stderr, code = runCLI(t, flags("status")...)
	if code != 0 {
		t.Fatalf("status failed (code %d): %s", code, stderr)
	}
	var statusOut struct {
		PlanCount int `json:"plan_count"`
	}
	if err := json.Unmarshal([]byte(out), &statusOut); err != nil {
		t.Fatalf("parse status output %q: %v", out, err)
	}
	if statusOut.PlanCount != 1 {
		t.Fatalf("expected 1 plan, got %d", statusOut.PlanCount)
	}
}

// TestLockRefusesUnknownPlan confirms a bad plan id surfaces as a
// caller-input error (exit code 2), not an internal one.
func TestLockRefusesUnknownPlan(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	_, _, code := runCLI(t, "--data-dir", dataDir, "--tenant", "t1", "--site", "s1", "lock", "does-not-exist")
	if code == 0 {
		t.Fatal("expected lock on an unknown plan to fail")
	}
}
