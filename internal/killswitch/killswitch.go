// Package killswitch implements spec.md §4.7's process-wide kill switch: a
// flag loaded at startup and re-read on external change notification, whose
// active state causes publish/lock operations to return KILL_SWITCH_ACTIVE
// without side effects.
//
// The watch loop (fsnotify on the flag file's parent directory, falling
// back to polling when fsnotify setup fails) is grounded on the teacher's
// cmd/bd/daemon_watcher.go FileWatcher, trimmed to the one file this
// package actually needs to track.
package killswitch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// activeContent is the file content that flips the switch on, compared
// after trailing newlines, carriage returns and spaces are trimmed; any
// other content (including an empty file) means inactive. Absence of the
// file also means inactive.
const activeContent = "ACTIVE"

// Switch is a process-wide, concurrency-safe kill switch.
type Switch struct {
	path   string
	mu     sync.RWMutex
	active bool

	watcher      *fsnotify.Watcher
	pollInterval time.Duration
	done         chan struct{}
}

// New loads the initial state from path and starts watching it for changes.
// A missing file is not an error: the switch starts inactive.
func New(path string) (*Switch, error) {
	s := &Switch{path: path, pollInterval: 2 * time.Second, done: make(chan struct{})}
	s.reload()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		go s.pollLoop()
		return s, nil
	}
	s.watcher = w
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		s.watcher = nil
		go s.pollLoop()
		return s, nil
	}
	go s.watchLoop()
	return s, nil
}

// Active reports whether the kill switch is currently engaged.
func (s *Switch) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Close stops the background watch loop.
func (s *Switch) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Switch) reload() {
	data, err := os.ReadFile(s.path)
	active := err == nil && string(trimTrailingNewline(data)) == activeContent
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

func trimTrailingNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

func (s *Switch) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == filepath.Clean(s.path) {
				s.reload()
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *Switch) pollLoop() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.reload()
		}
	}
}
