// Package server exposes optimization jobs over HTTP. Each job runs a
// Starlark script on its own thread and minimizes one of its functions
// through the bridge.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/mcsbridge/internal/bridge"
	"github.com/cwbudde/mcsbridge/internal/config"
	"github.com/cwbudde/mcsbridge/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runStore   store.Store
	addr       string
	dataDir    string
	defaults   config.Defaults
	server     *http.Server

	// ctx is the parent of every job context; Shutdown cancels it
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// NewServer creates a new HTTP server. runStore may be nil, in which case
// finished runs are only kept in memory.
func NewServer(cfg *config.Config, runStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		runStore:   runStore,
		addr:       cfg.Server.Addr,
		dataDir:    cfg.DataDir,
		defaults:   cfg.Defaults,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels every job, stops accepting requests and waits for the
// workers to record their final state.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("workers did not stop: %w", ctx.Err()))
	}
	return err
}

// startJob runs a job in the background under the server's context.
func (s *Server) startJob(jobID string) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.jobManager.setCancel(jobID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.jobManager.clearCancel(jobID)
		defer cancel()
		runJob(ctx, s.jobManager, s.runStore, s.dataDir, jobID)
	}()
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	if len(parts) == 1 && r.Method == http.MethodDelete {
		s.handleCancelJob(w, r, jobID)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "trace":
		s.handleGetTrace(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs. Kernel parameters missing from
// the body take the configured defaults.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	cfg := JobConfig{
		NSweeps:          s.defaults.NSweeps,
		MaxEvaluations:   s.defaults.MaxEvaluations,
		LocalSearchDepth: s.defaults.LocalSearchDepth,
		Gamma:            s.defaults.Gamma,
		SMax:             s.defaults.SMax,
	}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.Dimension < bridge.MinDimension || cfg.Dimension > bridge.MaxDimension {
		http.Error(w, (&bridge.UnsupportedDimensionError{Dimension: cfg.Dimension}).Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(cfg)
	s.startJob(job.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	rate := float64(0)
	if elapsed.Seconds() > 0 {
		rate = float64(job.Evaluations) / elapsed.Seconds()
	}

	response := map[string]interface{}{
		"id":               job.ID,
		"state":            job.State,
		"config":           job.Config,
		"bestPoint":        job.BestPoint,
		"bestValue":        job.BestValue,
		"evaluations":      job.Evaluations,
		"localEvaluations": job.LocalEvaluations,
		"infeasible":       job.Infeasible,
		"exitStatus":       job.ExitStatus,
		"elapsed":          elapsed.Seconds(),
		"evalsPerSecond":   rate,
		"startTime":        job.StartTime,
		"endTime":          job.EndTime,
		"error":            job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace. The trace is served as
// JSON lines, one evaluation per line.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	reader, err := store.NewTraceReader(s.dataDir, jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			slog.Error("Failed to write trace entry", "job_id", jobID, "error", err)
			return
		}
	}
}

// handleRuns handles GET /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runStore == nil {
		http.Error(w, "No run store configured", http.StatusNotFound)
		return
	}

	infos, err := s.runStore.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleRunWithID handles GET /api/v1/runs/:id
func (s *Server) handleRunWithID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runStore == nil {
		http.Error(w, "No run store configured", http.StatusNotFound)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	run, err := s.runStore.LoadRun(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
