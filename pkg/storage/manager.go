package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Manager handles the download directory and atomic file writes. A recording
// is only visible at its final path once fully written, so an existence check
// on a later run never mistakes a partial transfer for a finished download.
type Manager struct {
	dir string
}

// NewManager creates a storage manager rooted at dir, creating it if absent
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the managed directory path
func (m *Manager) Dir() string {
	return m.dir
}

// TargetPath joins a filename onto the managed directory
func (m *Manager) TargetPath(filename string) string {
	return filepath.Join(m.dir, filename)
}

// Exists reports whether a file already exists at the given path
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveStream writes the reader's contents to target via a temporary file and
// rename. On any failure the temporary file is removed and target is left
// untouched.
func (m *Manager) SaveStream(r io.Reader, target string) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write recording data: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync recording file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close recording file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move recording into place: %w", err)
	}

	return nil
}
