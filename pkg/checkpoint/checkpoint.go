// Package checkpoint persists per-device resume cursors so interrupted scans
// can continue from where the previous run left off.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	errs "ringhist/pkg/errors"
	"ringhist/pkg/logger"
)

// CursorID is a pagination cursor stored as a string. Older state files wrote
// it as a JSON number; both forms decode.
type CursorID string

// UnmarshalJSON accepts a JSON string or number
func (c *CursorID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*c = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = CursorID(s)
		return nil
	}

	*c = CursorID(trimmed)
	return nil
}

// Int64 parses the cursor as an integer id
func (c CursorID) Int64() (int64, bool) {
	v, err := strconv.ParseInt(string(c), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Checkpoint records where a device's scan stopped
type Checkpoint struct {
	OlderThanID         CursorID `json:"older_than_id"`
	OldestTimestampUTC  string   `json:"oldest_timestamp_utc,omitempty"`
	OldestTimestampLoc  string   `json:"oldest_timestamp_local,omitempty"`
	LastRunUTC          string   `json:"last_run_utc,omitempty"`
}

// State maps device keys to their checkpoints
type State map[string]Checkpoint

// KV abstracts the bytes-at-a-path persistence behind the store
type KV interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileKV persists state to a single JSON file with atomic replacement
type FileKV struct {
	path string
}

// NewFileKV creates a file-backed KV at path
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path returns the backing file path
func (f *FileKV) Path() string {
	return f.path
}

// Read returns the file contents, or nil with no error when absent
func (f *FileKV) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Newf(errs.ErrorTypePersistence, "failed to read state file: %v", err)
	}
	return data, nil
}

// Write replaces the file contents via a temporary file and rename
func (f *FileKV) Write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Newf(errs.ErrorTypePersistence, "failed to create state directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return errs.Newf(errs.ErrorTypePersistence, "failed to create temporary state file: %v", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Newf(errs.ErrorTypePersistence, "failed to write state: %v", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Newf(errs.ErrorTypePersistence, "failed to sync state: %v", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Newf(errs.ErrorTypePersistence, "failed to close state file: %v", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return errs.Newf(errs.ErrorTypePersistence, "failed to replace state file: %v", err)
	}

	return nil
}

// Store loads and saves resume state. A missing or corrupt state file
// degrades to an empty state with a diagnostic rather than failing the scan.
type Store struct {
	kv     KV
	logger logger.Logger
}

// NewStore creates a checkpoint store over the given persistence
func NewStore(kv KV, log logger.Logger) *Store {
	return &Store{kv: kv, logger: log}
}

// Load returns the persisted state, or an empty state when the file is
// missing or unreadable
func (s *Store) Load() State {
	data, err := s.kv.Read()
	if err != nil {
		s.logger.WarnWithFields("resume state unreadable, starting fresh", map[string]interface{}{
			"error": err.Error(),
		})
		return State{}
	}
	if len(data) == 0 {
		return State{}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.WarnWithFields("resume state corrupt, starting fresh", map[string]interface{}{
			"error": err.Error(),
		})
		return State{}
	}
	if state == nil {
		return State{}
	}
	return state
}

// Save persists the state
func (s *Store) Save(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errs.Newf(errs.ErrorTypePersistence, "failed to encode state: %v", err)
	}
	return s.kv.Write(data)
}

// Reset discards all persisted checkpoints
func (s *Store) Reset() error {
	return s.Save(State{})
}
