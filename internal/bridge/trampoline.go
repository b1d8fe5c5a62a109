package bridge

import (
	"context"
	"log/slog"
	"math"

	"github.com/cwbudde/mcsbridge/internal/host"
	"github.com/cwbudde/mcsbridge/internal/mcs"
	"go.starlark.net/starlark"
)

// Infeasible is the value of a point the objective could not evaluate. The
// kernel sees it as the worst possible value and steers away from the point.
var Infeasible = math.Inf(1)

// Observer is told about every evaluation. point must not be retained.
type Observer func(point []float64, value float64)

type threadKey struct{}

func withThread(ctx context.Context, thread *starlark.Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, thread)
}

func threadFrom(ctx context.Context) *starlark.Thread {
	thread, _ := ctx.Value(threadKey{}).(*starlark.Thread)
	return thread
}

// trampoline is the objective handed to the kernel. It captures nothing:
// the objective is found through the thread carried by ctx.
func trampoline[V mcs.Vector](ctx context.Context, x *V) float64 {
	return evaluate(ctx, fromVector(x))
}

// evaluate calls the registered objective at point. Any failure to call it or
// to read its result as a number yields Infeasible. Once ctx is done the
// objective is no longer called and the kernel drains its budget on
// Infeasible points.
func evaluate(ctx context.Context, point []float64) float64 {
	thread := threadFrom(ctx)
	s, ok := peek(thread)
	if !ok {
		slog.Warn("No objective registered, treating point as infeasible")
		return Infeasible
	}
	if ctx.Err() != nil {
		s.record(point, Infeasible)
		return Infeasible
	}

	arg := host.NewList(point)
	var (
		result starlark.Value
		err    error
	)
	host.WithLock(thread, func() {
		result, err = starlark.Call(thread, s.objective, starlark.Tuple{arg}, nil)
	})

	value := Infeasible
	if err != nil {
		slog.Warn("Failed to call objective, treating point as infeasible", "thread", thread.Name, "error", err)
	} else if f, ok := starlark.AsFloat(result); !ok {
		slog.Warn("Failed to read objective result as a number, treating point as infeasible", "thread", thread.Name, "type", result.Type())
	} else if math.IsNaN(f) {
		slog.Warn("Objective returned NaN, treating point as infeasible", "thread", thread.Name)
	} else {
		value = f
	}

	s.record(point, value)
	return value
}
