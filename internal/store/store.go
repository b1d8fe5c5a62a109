// Package store persists finished optimization runs and their evaluation
// traces.
package store

import (
	"fmt"
	"path/filepath"
)

// Store defines the interface for run persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun stores a finished run, overwriting any record with the same ID.
	SaveRun(run *RunRecord) error

	// LoadRun retrieves a run by ID.
	// Returns ErrNotFound if no run exists for this ID.
	LoadRun(id string) (*RunRecord, error)

	// ListRuns returns summaries of all stored runs, oldest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run and every artifact stored with it.
	// Returns ErrNotFound if no run exists for this ID.
	DeleteRun(id string) error

	// Close releases the backend. The store must not be used afterwards.
	Close() error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "run not found: " + e.ID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// Open returns the backend named by kind ("fs" or "badger") rooted at
// dataDir. The badger database lives in <dataDir>/badger.
func Open(kind, dataDir string) (Store, error) {
	switch kind {
	case "", "fs":
		return NewFSStore(dataDir)
	case "badger":
		return NewBadgerStore(filepath.Join(dataDir, "badger"))
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
