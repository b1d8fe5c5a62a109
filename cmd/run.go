package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/mcsbridge/internal/bridge"
	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/cwbudde/mcsbridge/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	scriptPath    string
	objectiveName string
	lower         []float64
	upper         []float64
	kernel        string
	nsweeps       int
	maxEvals      int
	localDepth    int
	gamma         float64
	smax          int
	iters         int
	popSize       int
	seed          int64
	saveRun       bool
	runDataDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Minimize a function defined in a Starlark script",
	Long: `Loads a Starlark script, looks up the objective function and minimizes it
over the box [lower, upper]. The dimension is the number of bounds.

Kernel parameters not given on the command line come from the config file.
With --save the run and its evaluation trace are written to the run store.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&scriptPath, "script", "", "Starlark script path (required)")
	runCmd.Flags().StringVar(&objectiveName, "func", "f", "Name of the objective function in the script")
	runCmd.Flags().Float64SliceVar(&lower, "lower", nil, "Lower bounds, comma separated (required)")
	runCmd.Flags().Float64SliceVar(&upper, "upper", nil, "Upper bounds, comma separated (required)")
	runCmd.Flags().StringVar(&kernel, "kernel", "mcs", "Optimizer: mcs or mayfly")
	runCmd.Flags().IntVar(&nsweeps, "nsweeps", 0, "MCS sweep limit")
	runCmd.Flags().IntVar(&maxEvals, "nf", 0, "MCS evaluation budget")
	runCmd.Flags().IntVar(&localDepth, "local", 0, "MCS local search depth (0 disables local search)")
	runCmd.Flags().Float64Var(&gamma, "gamma", 0, "MCS local search stopping tolerance")
	runCmd.Flags().IntVar(&smax, "smax", 0, "MCS level limit")
	runCmd.Flags().IntVar(&iters, "iters", 100, "Mayfly iterations")
	runCmd.Flags().IntVar(&popSize, "pop", 30, "Mayfly population size")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Mayfly random seed")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "Save the run and its trace to the run store (mcs only)")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Run store directory (default from config)")

	runCmd.MarkFlagRequired("script")
	runCmd.MarkFlagRequired("lower")
	runCmd.MarkFlagRequired("upper")
	rootCmd.AddCommand(runCmd)
}

// runConfig assembles the run from flags, falling back to config defaults
// for kernel parameters that were not set explicitly.
func runConfig(cmd *cobra.Command, script string) store.RunConfig {
	rc := store.RunConfig{
		Script:           script,
		Objective:        objectiveName,
		Dimension:        len(lower),
		Lower:            lower,
		Upper:            upper,
		NSweeps:          cfg.Defaults.NSweeps,
		MaxEvaluations:   cfg.Defaults.MaxEvaluations,
		LocalSearchDepth: cfg.Defaults.LocalSearchDepth,
		Gamma:            cfg.Defaults.Gamma,
		SMax:             cfg.Defaults.SMax,
	}
	flags := cmd.Flags()
	if flags.Changed("nsweeps") {
		rc.NSweeps = nsweeps
	}
	if flags.Changed("nf") {
		rc.MaxEvaluations = maxEvals
	}
	if flags.Changed("local") {
		rc.LocalSearchDepth = localDepth
	}
	if flags.Changed("gamma") {
		rc.Gamma = gamma
	}
	if flags.Changed("smax") {
		rc.SMax = smax
	}
	return rc
}

func runOptimization(cmd *cobra.Command, args []string) error {
	if kernel != "mcs" && kernel != "mayfly" {
		return fmt.Errorf("unknown kernel: %s", kernel)
	}
	if saveRun && kernel != "mcs" {
		return fmt.Errorf("--save is only supported with --kernel mcs")
	}

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	rc := runConfig(cmd, string(src))
	if err := rc.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	rt := host.NewRuntime(bridge.Builtins())
	thread := rt.NewThread("run")
	cancel := context.AfterFunc(ctx, func() {
		thread.Cancel("interrupted")
	})
	defer cancel()

	globals, err := rt.ExecFile(thread, scriptPath, rc.Script)
	if err != nil {
		return err
	}
	objective, err := host.Lookup(globals, rc.Objective)
	if err != nil {
		return err
	}

	slog.Info("Starting optimization", "kernel", kernel, "objective", rc.Objective, "dimension", rc.Dimension)
	start := time.Now()

	if kernel == "mayfly" {
		res, err := bridge.OptimizeMayfly(ctx, thread, bridge.MayflyRequest{
			Dimension:  rc.Dimension,
			Objective:  objective,
			Lower:      rc.Lower,
			Upper:      rc.Upper,
			Iterations: iters,
			Population: popSize,
			Seed:       seed,
		})
		if err != nil {
			return err
		}
		slog.Info("Optimization complete", "elapsed", time.Since(start), "best_value", res.BestValue, "evaluations", res.Evaluations)
		printf(cmd, "xbest = %v\nfbest = %g\nncall = %d\n", res.BestPoint, res.BestValue, res.Evaluations)
		return nil
	}

	req := bridge.Request{
		Dimension:        rc.Dimension,
		Objective:        objective,
		Lower:            rc.Lower,
		Upper:            rc.Upper,
		Hessian:          bridge.OnesHessian(rc.Dimension),
		NSweeps:          rc.NSweeps,
		MaxEvaluations:   rc.MaxEvaluations,
		LocalSearchDepth: rc.LocalSearchDepth,
		Gamma:            rc.Gamma,
		SMax:             rc.SMax,
	}

	var (
		id    string
		trace *store.TraceWriter
	)
	if saveRun {
		id = uuid.New().String()
		trace, err = store.NewTraceWriter(dataDir(runDataDir), id, false)
		if err != nil {
			return err
		}
		defer trace.Close()
		req.Observer = traceObserver(trace)
	}

	res, err := bridge.Optimize(ctx, thread, req)
	if err != nil {
		if saveRun {
			// no record is saved for a failed call, so drop its trace
			trace.Close()
			if derr := store.DeleteTrace(dataDir(runDataDir), id); derr != nil {
				slog.Warn("Failed to remove trace", "run_id", id, "error", derr)
			}
		}
		return err
	}
	elapsed := time.Since(start)

	slog.Info("Optimization complete",
		"elapsed", elapsed,
		"best_value", res.BestValue,
		"evaluations", res.Evaluations,
		"local_evaluations", res.LocalEvaluations,
		"infeasible", res.Infeasible,
		"exit_status", res.ExitStatus,
	)
	printf(cmd, "xbest = %v\nfbest = %g\nncall = %d\nncloc = %d\nflag = %s\n",
		res.BestPoint, res.BestValue, res.Evaluations, res.LocalEvaluations, res.ExitStatus)

	if !saveRun {
		return nil
	}
	if err := saveRecord(id, rc, res, start); err != nil {
		return err
	}
	printf(cmd, "saved run %s\n", id)
	return nil
}

func traceObserver(trace *store.TraceWriter) bridge.Observer {
	index := 0
	return func(point []float64, value float64) {
		err := trace.Write(store.TraceEntry{
			Index:      index,
			Point:      point,
			Value:      store.Float(value),
			Infeasible: math.IsInf(value, 1),
			Timestamp:  time.Now(),
		})
		if err != nil {
			slog.Debug("Failed to write trace entry", "index", index, "error", err)
		}
		index++
	}
}

func saveRecord(id string, rc store.RunConfig, res *bridge.Result, start time.Time) error {
	runStore, err := store.Open(cfg.Store, dataDir(runDataDir))
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer runStore.Close()

	err = runStore.SaveRun(&store.RunRecord{
		ID:               id,
		Config:           rc,
		BestPoint:        res.BestPoint,
		BestValue:        store.Float(res.BestValue),
		Evaluations:      res.Evaluations,
		LocalEvaluations: res.LocalEvaluations,
		ExitStatus:       res.ExitStatus,
		Infeasible:       res.Infeasible,
		StartedAt:        start,
		FinishedAt:       time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	slog.Info("Run saved", "run_id", id)
	return nil
}
