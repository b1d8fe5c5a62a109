package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// backends runs a test against every Store implementation.
func backends(t *testing.T, test func(t *testing.T, s Store)) {
	t.Run("fs", func(t *testing.T) {
		s, err := NewFSStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFSStore failed: %v", err)
		}
		defer s.Close()
		test(t, s)
	})
	t.Run("badger", func(t *testing.T) {
		s, err := NewBadgerStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewBadgerStore failed: %v", err)
		}
		defer s.Close()
		test(t, s)
	})
}

func TestStore_SaveAndLoad(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		original := testRun("run-1")
		if err := s.SaveRun(original); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		loaded, err := s.LoadRun("run-1")
		if err != nil {
			t.Fatalf("LoadRun failed: %v", err)
		}
		if loaded.ID != original.ID {
			t.Errorf("ID mismatch: expected %s, got %s", original.ID, loaded.ID)
		}
		if loaded.BestValue != original.BestValue {
			t.Errorf("BestValue mismatch: expected %v, got %v", original.BestValue, loaded.BestValue)
		}
		if loaded.ExitStatus != original.ExitStatus {
			t.Errorf("ExitStatus mismatch: expected %s, got %s", original.ExitStatus, loaded.ExitStatus)
		}
		if !loaded.FinishedAt.Equal(original.FinishedAt) {
			t.Errorf("FinishedAt mismatch: expected %v, got %v", original.FinishedAt, loaded.FinishedAt)
		}
		for i := range original.BestPoint {
			if loaded.BestPoint[i] != original.BestPoint[i] {
				t.Errorf("BestPoint[%d] mismatch: expected %f, got %f", i, original.BestPoint[i], loaded.BestPoint[i])
			}
		}
	})
}

func TestStore_Overwrite(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		run := testRun("run-1")
		if err := s.SaveRun(run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		run.BestValue = 0.001
		if err := s.SaveRun(run); err != nil {
			t.Fatalf("second SaveRun failed: %v", err)
		}

		loaded, err := s.LoadRun("run-1")
		if err != nil {
			t.Fatalf("LoadRun failed: %v", err)
		}
		if loaded.BestValue != 0.001 {
			t.Errorf("expected overwritten BestValue 0.001, got %v", loaded.BestValue)
		}
	})
}

func TestStore_RejectsInvalidRun(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.SaveRun(nil); err == nil {
			t.Error("expected error for nil run")
		}
		var valErr *ValidationError
		if err := s.SaveRun(testRun("")); !errors.As(err, &valErr) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})
}

func TestStore_NotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if _, err := s.LoadRun("missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("LoadRun: expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteRun("missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteRun: expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_ListAndDelete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		infos, err := s.ListRuns()
		if err != nil {
			t.Fatalf("ListRuns on empty store failed: %v", err)
		}
		if len(infos) != 0 {
			t.Fatalf("expected empty list, got %d", len(infos))
		}

		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		for i, id := range []string{"c", "a", "b"} {
			run := testRun(id)
			run.FinishedAt = base.Add(time.Duration(i) * time.Minute)
			if err := s.SaveRun(run); err != nil {
				t.Fatalf("SaveRun(%s) failed: %v", id, err)
			}
		}

		infos, err = s.ListRuns()
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(infos) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(infos))
		}
		for i, want := range []string{"c", "a", "b"} {
			if infos[i].ID != want {
				t.Errorf("infos[%d].ID = %s, expected %s (oldest first)", i, infos[i].ID, want)
			}
		}
		if infos[0].Objective != "f" || infos[0].Dimension != 2 {
			t.Errorf("unexpected info: %+v", infos[0])
		}

		if err := s.DeleteRun("a"); err != nil {
			t.Fatalf("DeleteRun failed: %v", err)
		}
		if _, err := s.LoadRun("a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		infos, _ = s.ListRuns()
		if len(infos) != 2 {
			t.Errorf("expected 2 runs after delete, got %d", len(infos))
		}
	})
}

func TestFSStore_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if err := s.SaveRun(testRun("layout")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	path := filepath.Join(dir, "runs", "layout", "run.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("run.json not at %s: %v", path, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFSStore_ListSkipsTraceOnlyAndCorruptRuns(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFSStore(dir)
	if err := s.SaveRun(testRun("good")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	// a run in progress has a trace but no run.json yet
	tw, err := NewTraceWriter(dir, "running", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Close()

	corrupt := filepath.Join(dir, "runs", "corrupt")
	os.MkdirAll(corrupt, 0755)
	os.WriteFile(filepath.Join(corrupt, "run.json"), []byte("{not json"), 0644)

	infos, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "good" {
		t.Errorf("expected only the good run, got %+v", infos)
	}
}

func TestFSStore_DeleteRemovesTrace(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFSStore(dir)
	s.SaveRun(testRun("traced"))

	tw, _ := NewTraceWriter(dir, "traced", false)
	tw.Write(TraceEntry{Index: 0, Point: []float64{0, 0}, Value: 1})
	tw.Close()

	if err := s.DeleteRun("traced"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(TracePath(dir, "traced")); !os.IsNotExist(err) {
		t.Error("trace should be removed with the run")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	fs, err := Open("fs", dir)
	if err != nil {
		t.Fatalf("Open(fs) failed: %v", err)
	}
	if _, ok := fs.(*FSStore); !ok {
		t.Errorf("Open(fs) returned %T", fs)
	}

	bs, err := Open("badger", dir)
	if err != nil {
		t.Fatalf("Open(badger) failed: %v", err)
	}
	defer bs.Close()
	if _, ok := bs.(*BadgerStore); !ok {
		t.Errorf("Open(badger) returned %T", bs)
	}

	if _, err := Open("sqlite", dir); err == nil {
		t.Error("expected error for unknown store")
	}
}
