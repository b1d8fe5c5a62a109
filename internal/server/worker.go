package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cwbudde/mcsbridge/internal/bridge"
	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/cwbudde/mcsbridge/internal/store"
)

// runJob executes a job in the background. The script runs on a fresh
// Starlark thread, its objective is minimized through the bridge, and every
// evaluation is appended to <dataDir>/runs/<id>/trace.jsonl.
// If runStore is not nil the finished run is persisted.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, dataDir, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Check for cancellation before starting
	select {
	case <-ctx.Done():
		markJobCancelled(jm, runStore, jobID)
		return ctx.Err()
	default:
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "objective", job.Config.Objective, "dimension", job.Config.Dimension)

	rt := host.NewRuntime(bridge.Builtins())
	thread := rt.NewThread("job-" + jobID)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel("job cancelled")
	})
	defer stop()

	fail := func(err error) error {
		if ctx.Err() != nil {
			markJobCancelled(jm, runStore, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, runStore, jobID, err)
		return err
	}

	globals, err := rt.ExecFile(thread, "job.star", job.Config.Script)
	if err != nil {
		return fail(err)
	}
	objective, err := host.Lookup(globals, job.Config.Objective)
	if err != nil {
		return fail(err)
	}

	trace, err := store.NewTraceWriter(dataDir, jobID, false)
	if err != nil {
		return fail(err)
	}
	defer trace.Close()

	hessian := job.Config.Hessian
	if hessian == nil {
		hessian = bridge.OnesHessian(job.Config.Dimension)
	}

	start := time.Now()
	progressDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitorProgress(ctx, jm, trace, jobID, start, progressDone)
	}()

	res, err := bridge.Optimize(ctx, thread, bridge.Request{
		Dimension:        job.Config.Dimension,
		Objective:        objective,
		Lower:            job.Config.Lower,
		Upper:            job.Config.Upper,
		Hessian:          hessian,
		NSweeps:          job.Config.NSweeps,
		MaxEvaluations:   job.Config.MaxEvaluations,
		LocalSearchDepth: job.Config.LocalSearchDepth,
		Gamma:            job.Config.Gamma,
		SMax:             job.Config.SMax,
		Observer:         recordEvaluation(jm, trace, jobID),
	})

	close(progressDone)
	wg.Wait()
	elapsed := time.Since(start)

	if err := trace.Flush(); err != nil {
		slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
	}
	if err != nil || ctx.Err() != nil {
		return fail(err)
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestPoint = res.BestPoint
		j.BestValue = store.Float(res.BestValue)
		j.Evaluations = res.Evaluations
		j.LocalEvaluations = res.LocalEvaluations
		j.Infeasible = res.Infeasible
		j.ExitStatus = res.ExitStatus
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"best_value", res.BestValue,
		"evaluations", res.Evaluations,
		"infeasible", res.Infeasible,
		"exit_status", res.ExitStatus,
	)

	broadcastState(jm, jobID, elapsed)
	saveRun(jm, runStore, jobID)
	return nil
}

// recordEvaluation returns the observer that keeps a running job's progress
// and trace current.
func recordEvaluation(jm *JobManager, trace *store.TraceWriter, jobID string) bridge.Observer {
	index := 0
	traceFailed := false

	return func(point []float64, value float64) {
		infeasible := math.IsInf(value, 1)
		err := trace.Write(store.TraceEntry{
			Index:      index,
			Point:      point,
			Value:      store.Float(value),
			Infeasible: infeasible,
			Timestamp:  time.Now(),
		})
		if err != nil && !traceFailed {
			traceFailed = true
			slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
		}
		index++

		jm.UpdateJob(jobID, func(j *Job) {
			j.Evaluations++
			if infeasible {
				j.Infeasible++
			}
			if j.BestPoint == nil || value < float64(j.BestValue) {
				j.BestValue = store.Float(value)
				j.BestPoint = append([]float64(nil), point...)
			}
		})
	}
}

// monitorProgress periodically broadcasts progress events and flushes the
// trace so readers see recent evaluations.
func monitorProgress(ctx context.Context, jm *JobManager, trace *store.TraceWriter, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := trace.Flush(); err != nil {
				slog.Debug("Failed to flush trace", "job_id", jobID, "error", err)
			}
			broadcastState(jm, jobID, time.Since(startTime))
		}
	}
}

// broadcastState sends the job's current state to stream subscribers.
func broadcastState(jm *JobManager, jobID string, elapsed time.Duration) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}
	jm.broadcaster.Broadcast(newProgressEvent(job, elapsed))
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, runStore store.Store, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	broadcastState(jm, jobID, 0)
	saveRun(jm, runStore, jobID)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, runStore store.Store, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.Error = "job cancelled"
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	broadcastState(jm, jobID, 0)
	saveRun(jm, runStore, jobID)
}

// saveRun persists the job's current state.
func saveRun(jm *JobManager, runStore store.Store, jobID string) {
	if runStore == nil {
		return
	}
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}
	if err := runStore.SaveRun(job.Record()); err != nil {
		slog.Error("Failed to save run", "job_id", jobID, "error", err)
		return
	}
	slog.Debug("Run saved", "job_id", jobID)
}
