package evidence

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore is a content-addressed blob store for evidence packs: each
// archive is written once under its own hash and never rewritten,
// mirroring spec.md §3's "Evidence packs are content-addressed blobs owned
// by the evidence store; plans hold a weak reference by hash."
type DiskStore struct {
	baseDir string
}

// NewDiskStore roots every evidence archive under baseDir (created if
// absent).
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create evidence dir %s: %w", baseDir, err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

func (s *DiskStore) path(hash string) string {
	return filepath.Join(s.baseDir, hash+".zip")
}

// Put writes pack's archive under its content hash and returns the hash.
// Writing the same pack twice is a no-op past the first write: the target
// path is the same, and the bytes are identical by construction.
func (s *DiskStore) Put(p Pack) (string, error) {
	archive, hash, err := p.WriteZip()
	if err != nil {
		return "", err
	}
	path := s.path(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil // already present, content-addressed so nothing to do
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, archive, 0640); err != nil {
		return "", fmt.Errorf("write evidence archive %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize evidence archive %s: %w", path, err)
	}
	return hash, nil
}

// Get reads the archive stored under hash.
func (s *DiskStore) Get(hash string) ([]byte, error) {
	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		return nil, fmt.Errorf("read evidence archive %s: %w", hash, err)
	}
	return data, nil
}

// Has reports whether an archive is already stored under hash.
func (s *DiskStore) Has(hash string) bool {
	_, err := os.Stat(s.path(hash))
	return err == nil
}
