package bridge

import (
	"context"
	"errors"

	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/cwbudde/mcsbridge/internal/opt"
	"go.starlark.net/starlark"
)

// MayflyRequest describes a call to the Mayfly optimizer through the bridge.
type MayflyRequest struct {
	Dimension int
	Objective starlark.Callable
	Lower     []float64
	Upper     []float64

	Iterations int
	Population int
	Seed       int64

	Observer Observer
}

// MayflyResult is the outcome of OptimizeMayfly.
type MayflyResult struct {
	BestPoint   []float64
	BestValue   float64
	Evaluations int
	Infeasible  int
}

// OptimizeMayfly runs the Mayfly metaheuristic with the same dimension
// checks, registration and failure handling as Optimize.
func OptimizeMayfly(ctx context.Context, thread *starlark.Thread, req MayflyRequest) (*MayflyResult, error) {
	n := req.Dimension
	if n < MinDimension || n > MaxDimension {
		return nil, &UnsupportedDimensionError{Dimension: n}
	}
	if len(req.Lower) != n {
		return nil, &ShapeMismatchError{Buffer: "lower_bound", Expected: []int{n}, Actual: []int{len(req.Lower)}}
	}
	if len(req.Upper) != n {
		return nil, &ShapeMismatchError{Buffer: "upper_bound", Expected: []int{n}, Actual: []int{len(req.Upper)}}
	}
	if req.Objective == nil {
		return nil, errors.New("objective is nil")
	}

	s := &slot{objective: req.Objective, observer: req.Observer}
	release, err := acquire(thread, s)
	if err != nil {
		return nil, err
	}
	defer release()

	optimizer := opt.NewMayfly(req.Iterations, req.Population, req.Seed)
	ctx = withThread(ctx, thread)

	var (
		best []float64
		cost float64
	)
	host.AllowThreads(thread, func() {
		best, cost, err = optimizer.Run(func(x []float64) float64 {
			return evaluate(ctx, x)
		}, req.Lower, req.Upper, n)
	})
	if err != nil {
		return nil, &KernelError{Err: err}
	}

	return &MayflyResult{
		BestPoint:   best,
		BestValue:   cost,
		Evaluations: s.evaluations,
		Infeasible:  s.infeasible,
	}, nil
}
