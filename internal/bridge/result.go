package bridge

import (
	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/cwbudde/mcsbridge/internal/mcs"
	"go.starlark.net/starlark"
)

// Result is the host-facing outcome of an optimization.
type Result struct {
	BestPoint        []float64
	BestValue        float64
	Evaluations      int
	LocalEvaluations int
	ExitStatus       string

	// Infeasible counts evaluations that ended as the Infeasible value
	Infeasible int
}

func newResult[V mcs.Vector](r *mcs.Result[V]) *Result {
	return &Result{
		BestPoint:        fromVector(&r.XBest),
		BestValue:        r.FBest,
		Evaluations:      r.NCall,
		LocalEvaluations: r.NCloc,
		ExitStatus:       r.Flag.String(),
	}
}

// Tuple renders the result as (best_point, best_value, n_evaluations,
// n_local_evaluations, exit_status).
func (r *Result) Tuple() starlark.Tuple {
	return starlark.Tuple{
		host.NewList(r.BestPoint),
		starlark.Float(r.BestValue),
		starlark.MakeInt(r.Evaluations),
		starlark.MakeInt(r.LocalEvaluations),
		starlark.String(r.ExitStatus),
	}
}
