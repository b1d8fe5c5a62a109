// Package bridge lets Starlark code run the fixed-dimension optimization
// kernel with a Starlark function as the objective.
//
// The kernel only accepts a plain function over fixed-size arrays. The bridge
// picks the array size from the runtime dimension, registers the objective
// in the calling thread's slot for the duration of one call, and hands the
// kernel a trampoline that reaches the objective through that slot.
package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/cwbudde/mcsbridge/internal/mcs"
	"go.starlark.net/starlark"
)

// Request describes one optimization call.
type Request struct {
	Dimension int
	Objective starlark.Callable

	Lower []float64
	Upper []float64
	// Hessian is the n×n sparsity pattern in row-major order; see OnesHessian
	Hessian [][]float64

	NSweeps          int
	MaxEvaluations   int
	LocalSearchDepth int
	Gamma            float64
	SMax             int

	// Observer, if set, sees every evaluation
	Observer Observer
}

func (r *Request) params() mcs.Params {
	return mcs.Params{
		NSweeps:          r.NSweeps,
		MaxEvaluations:   r.MaxEvaluations,
		LocalSearchDepth: r.LocalSearchDepth,
		Gamma:            r.Gamma,
		SMax:             r.SMax,
	}
}

// optimize runs one call for the dimension encoded in V and M.
func optimize[V mcs.Vector, M mcs.Matrix](ctx context.Context, thread *starlark.Thread, req *Request) (*Result, error) {
	lower, err := toVector[V]("lower_bound", req.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := toVector[V]("upper_bound", req.Upper)
	if err != nil {
		return nil, err
	}
	hess, err := toMatrix[M]("hessian", req.Hessian, len(lower))
	if err != nil {
		return nil, err
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

	slog.Debug("Starting optimization", "thread", thread.Name, "dimension", len(lower), "nf", req.MaxEvaluations)

	var res mcs.Result[V]
	host.AllowThreads(thread, func() {
		res, err = mcs.Minimize(withThread(ctx, thread), trampoline[V], &lower, &upper, req.params(), &hess)
	})
	if err != nil {
		return nil, &KernelError{Err: err}
	}

	out := newResult(&res)
	out.Infeasible = s.infeasible
	slog.Debug("Optimization finished",
		"thread", thread.Name,
		"best_value", out.BestValue,
		"evaluations", out.Evaluations,
		"infeasible", out.Infeasible,
		"exit_status", out.ExitStatus,
	)
	return out, nil
}
