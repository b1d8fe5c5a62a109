package server

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/mcsbridge/internal/store"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is an alias to avoid duplication with store.RunConfig
type JobConfig = store.RunConfig

// Job is one optimization submitted to the server. Progress fields are
// updated after every objective evaluation while the job runs.
type Job struct {
	ID               string      `json:"id"`
	State            JobState    `json:"state"`
	Config           JobConfig   `json:"config"`
	BestPoint        []float64   `json:"bestPoint,omitempty"`
	BestValue        store.Float `json:"bestValue"`
	Evaluations      int         `json:"evaluations"`
	LocalEvaluations int         `json:"localEvaluations"`
	Infeasible       int         `json:"infeasible"`
	ExitStatus       string      `json:"exitStatus,omitempty"`
	StartTime        time.Time   `json:"startTime"`
	EndTime          *time.Time  `json:"endTime,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// Record converts a finished job into its persisted form.
func (j *Job) Record() *store.RunRecord {
	rec := &store.RunRecord{
		ID:               j.ID,
		Config:           j.Config,
		BestPoint:        j.BestPoint,
		BestValue:        j.BestValue,
		Evaluations:      j.Evaluations,
		LocalEvaluations: j.LocalEvaluations,
		ExitStatus:       j.ExitStatus,
		Infeasible:       j.Infeasible,
		Error:            j.Error,
		StartedAt:        j.StartTime,
		FinishedAt:       time.Now(),
	}
	if j.EndTime != nil {
		rec.FinishedAt = *j.EndTime
	}
	return rec
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new pending job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		BestValue: store.Float(math.Inf(1)),
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	snapshot := *job
	return &snapshot
}

// GetJob returns a snapshot of the job. Later updates do not affect it.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			snapshot := *job
			runningJobs = append(runningJobs, &snapshot)
		}
	}
	return runningJobs
}

// setCancel records how to stop a job's worker.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob stops a pending or running job. It returns false when the job
// does not exist or has already finished.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	cancel, ok := jm.cancels[id]
	jm.mu.RUnlock()

	if !ok {
		return false
	}
	cancel()
	return true
}
