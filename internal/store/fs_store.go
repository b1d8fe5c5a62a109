package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements Store on the filesystem.
// Runs are stored in a directory structure: <baseDir>/runs/<id>/
//
// Thread-safety: writes go through temp file + rename, so no locks are
// needed and concurrent callers never observe a partial run.json.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// runDir returns the directory for a run ID. Traces live here as well.
func runDir(baseDir, id string) string {
	return filepath.Join(baseDir, "runs", id)
}

func (fs *FSStore) runPath(id string) string {
	return filepath.Join(runDir(fs.baseDir, id), "run.json")
}

// SaveRun atomically writes run.json for the run.
func (fs *FSStore) SaveRun(run *RunRecord) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := run.Validate(); err != nil {
		return err
	}

	dir := runDir(fs.baseDir, run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tempPath := fs.runPath(run.ID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}

	finalPath := fs.runPath(run.ID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	slog.Debug("Run saved", "run_id", run.ID, "path", finalPath)
	return nil
}

// LoadRun reads run.json for the given ID.
func (fs *FSStore) LoadRun(id string) (*RunRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	data, err := os.ReadFile(fs.runPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &run, nil
}

// ListRuns scans <baseDir>/runs. Directories without a readable run.json
// (for example a trace of a run still in progress) are skipped.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(fs.runPath(entry.Name())); os.IsNotExist(err) {
			continue
		}

		run, err := fs.LoadRun(entry.Name())
		if err != nil {
			slog.Warn("Failed to load run for listing", "run_id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, run.ToInfo())
	}

	sortInfos(infos)
	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory, trace included.
func (fs *FSStore) DeleteRun(id string) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	dir := runDir(fs.baseDir, id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "run_id", id, "path", dir)
	return nil
}

// Close is a no-op for the filesystem store.
func (fs *FSStore) Close() error { return nil }
