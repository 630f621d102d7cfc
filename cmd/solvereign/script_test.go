package main

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// solvereignCmd runs the CLI in-process against the script's current
// working directory and environment, the same way the teacher drives its
// own bead subcommands from integration tests but adapted to rsc.io/script
// transcripts instead of a table-driven harness.
type solvereignCmd struct{}

func (solvereignCmd) Usage() *script.CmdUsage {
	return &script.CmdUsage{
		Summary: "run the solvereign CLI",
		Args:    "arg...",
	}
}

func (solvereignCmd) Run(s *script.State, args ...string) (script.WaitFunc, error) {
	// The engine already expands $VAR references in every command's raw
	// args before Run is called, so args here need no further expansion.
	expandedArgs := args

	wd := s.Getwd()
	var stdout, stderr strings.Builder
	exitCode := 0

	func() {
		cwd, err := os.Getwd()
		if err == nil {
			defer os.Chdir(cwd)
		}
		_ = os.Chdir(wd)

		root := newRootCmd()
		root.SetArgs(expandedArgs)
		root.SetOut(&stdout)
		root.SetErr(&stderr)
		if execErr := root.Execute(); execErr != nil {
			stderr.WriteString("error: " + execErr.Error() + "\n")
			exitCode = exitCodeFor(execErr)
		}
	}()

	return func(*script.State) (string, string, error) {
		if exitCode != 0 {
			return stdout.String(), stderr.String(), &exitError{code: exitCode}
		}
		return stdout.String(), stderr.String(), nil
	}, nil
}

// exitError carries a non-zero CLI exit code through a script transcript so
// `! solvereign ...` lines can assert on failure the same way they'd assert
// on a failing subprocess.
type exitError struct{ code int }

func (e *exitError) Error() string { return "exit status " + itoa(e.code) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func newTestEngine() *script.Engine {
	cmds := scripttest.DefaultCmds()
	cmds["solvereign"] = solvereignCmd{}
	return &script.Engine{
		Cmds:  cmds,
		Conds: scripttest.DefaultConds(),
	}
}

func runScript(t *testing.T, path string) {
	t.Helper()
	workdir := t.TempDir()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	copyFixtures(t, workdir)

	env := []string{
		"HOME=" + workdir,
		"SOLVEREIGN_DATA=" + filepath.Join(workdir, "data"),
	}
	s, err := script.NewState(context.Background(), workdir, env)
	if err != nil {
		t.Fatal(err)
	}

	engine := newTestEngine()
	scripttest.Run(t, engine, s, filepath.Base(path), bufio.NewReader(f))
}

// copyFixtures stages every non-script file under testdata/ (fixture input
// files such as forecast.json) into the script's working directory, since
// the script engine itself has no txtar-style inline-file syntax.
func copyFixtures(t *testing.T, workdir string) {
	t.Helper()
	entries, err := os.ReadDir("testdata")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("testdata", e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(workdir, e.Name()), data, 0640); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScripts(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no testdata/*.txt scripts found")
	}
	for _, file := range files {
		file := file
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txt"), func(t *testing.T) {
			runScript(t, file)
		})
	}
}
