package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const runPrefix = "run/"

// BadgerStore implements Store on an embedded badger database. Records are
// JSON values under the key "run/<id>". Traces stay on the filesystem.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a database in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

func (s *BadgerStore) SaveRun(run *RunRecord) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := run.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run.ID), data)
	}); err != nil {
		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	slog.Debug("Run saved", "run_id", run.ID, "store", "badger")
	return nil
}

func (s *BadgerStore) LoadRun(id string) (*RunRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	var run RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return &run, nil
}

func (s *BadgerStore) ListRuns() ([]RunInfo, error) {
	infos := []RunInfo{}
	prefix := []byte(runPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var run RunRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				slog.Warn("Failed to decode run for listing", "key", string(item.Key()), "error", err)
				continue
			}
			infos = append(infos, run.ToInfo())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	sortInfos(infos)
	return infos, nil
}

func (s *BadgerStore) DeleteRun(id string) error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(id)); err != nil {
			return err
		}
		return txn.Delete(runKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
