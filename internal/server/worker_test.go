package server

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/mcsbridge/internal/store"
)

func TestRunJob_Success(t *testing.T) {
	dataDir := t.TempDir()
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	jm := NewJobManager()
	job := jm.CreateJob(sphereConfig())

	if err := runJob(context.Background(), jm, runStore, dataDir, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s (%s)", updated.State, updated.Error)
	}
	if float64(updated.BestValue) > 1e-2 {
		t.Errorf("BestValue should be close to 0, got %v", updated.BestValue)
	}
	if len(updated.BestPoint) != 2 {
		t.Errorf("Expected 2 coordinates, got %d", len(updated.BestPoint))
	}
	if updated.Evaluations == 0 || updated.Evaluations > 400 {
		t.Errorf("Evaluations out of range: %d", updated.Evaluations)
	}
	if updated.ExitStatus == "" {
		t.Error("ExitStatus should be set")
	}

	reader, err := store.NewTraceReader(dataDir, job.ID)
	if err != nil {
		t.Fatalf("Trace should exist: %v", err)
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(entries) != updated.Evaluations {
		t.Errorf("Trace has %d entries, expected %d", len(entries), updated.Evaluations)
	}

	rec, err := runStore.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("Run should be saved: %v", err)
	}
	if rec.BestValue != updated.BestValue {
		t.Errorf("Saved BestValue %v, expected %v", rec.BestValue, updated.BestValue)
	}
}

func TestRunJob_InfeasiblePoints(t *testing.T) {
	jm := NewJobManager()
	cfg := sphereConfig()
	cfg.Script = `
def f(x):
    if x[0] > 1:
        fail("outside the domain")
    return x[0] * x[0] + x[1] * x[1]
`
	cfg.Objective = "f"
	job := jm.CreateJob(cfg)

	if err := runJob(context.Background(), jm, nil, t.TempDir(), job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s", updated.State)
	}
	if updated.Infeasible == 0 {
		t.Error("Expected some infeasible evaluations")
	}
	if math.IsInf(float64(updated.BestValue), 0) {
		t.Error("Best value should be finite")
	}
}

func TestRunJob_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*JobConfig)
	}{
		{"script error", func(c *JobConfig) { c.Script = "fail('broken script')\n" }},
		{"missing objective", func(c *JobConfig) { c.Objective = "nope" }},
		{"objective not callable", func(c *JobConfig) { c.Script = "sphere = 3\n" }},
		{"kernel rejects bounds", func(c *JobConfig) { c.Lower = []float64{3, 3} }},
		{"unsupported dimension", func(c *JobConfig) {
			c.Dimension = 16
			c.Lower = make([]float64, 16)
			c.Upper = make([]float64, 16)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			runStore, _ := store.NewFSStore(dataDir)
			jm := NewJobManager()
			cfg := sphereConfig()
			tt.mutate(&cfg)
			job := jm.CreateJob(cfg)

			err := runJob(context.Background(), jm, runStore, dataDir, job.ID)
			if err == nil {
				t.Fatal("runJob should fail")
			}

			updated, _ := jm.GetJob(job.ID)
			if updated.State != StateFailed {
				t.Errorf("Job should be failed, got %s", updated.State)
			}
			if updated.Error == "" {
				t.Error("Error message should be set")
			}

			rec, err := runStore.LoadRun(job.ID)
			if err != nil {
				t.Fatalf("Failed run should be saved: %v", err)
			}
			if rec.Error == "" {
				t.Error("Saved run should carry the error")
			}
		})
	}
}

func TestRunJob_CancelledBeforeStart(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(sphereConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runJob(ctx, jm, nil, t.TempDir(), job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
}

func TestRunJob_CancelWhileRunning(t *testing.T) {
	jm := NewJobManager()
	cfg := sphereConfig()
	// slow evaluations keep the job running until it is cancelled
	cfg.Script = `
def slow(x):
    n = 0
    for i in range(100000):
        n += i
    return x[0] * x[0]
`
	cfg.Objective = "slow"
	cfg.MaxEvaluations = 1000000
	cfg.NSweeps = 1000
	job := jm.CreateJob(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- runJob(ctx, jm, nil, t.TempDir(), job.ID)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("runJob did not stop after cancellation")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
}

func TestRunJob_NotFound(t *testing.T) {
	if err := runJob(context.Background(), NewJobManager(), nil, t.TempDir(), "missing"); err == nil {
		t.Error("runJob should fail for unknown job")
	}
}
