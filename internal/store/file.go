// Package store provides persistence backends for the tracking record
// table. The table is small and is written wholesale on every tracker
// mutation, so both backends favor simplicity over write granularity.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drossen/ticketsmith/internal/track"
)

// FileStore persists the record table as a single JSON document,
// written atomically via rename.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path. Parent directories are
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the table. A missing file yields an empty table.
func (s *FileStore) Load(ctx context.Context) (map[string]*track.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*track.Record), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	records := make(map[string]*track.Record)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	return records, nil
}

// Save writes the whole table, replacing the previous file only after
// the new contents are fully on disk.
func (s *FileStore) Save(ctx context.Context, records map[string]*track.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
