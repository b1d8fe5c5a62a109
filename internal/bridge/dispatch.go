package bridge

import (
	"context"

	"go.starlark.net/starlark"
)

// Supported dimensions. Each one has its own instantiation of the kernel.
const (
	MinDimension = 1
	MaxDimension = 15
)

// Optimize runs the kernel for req.Dimension with req.Objective evaluated on
// thread. Evaluation failures inside the objective do not fail the call;
// those points get the Infeasible value.
//
// Errors: *UnsupportedDimensionError and *ShapeMismatchError before anything
// is evaluated, ErrReentrant if thread is already optimizing, and
// *KernelError when the kernel rejects its input.
func Optimize(ctx context.Context, thread *starlark.Thread, req Request) (*Result, error) {
	switch req.Dimension {
	case 1:
		return optimize[[1]float64, [1]float64](ctx, thread, &req)
	case 2:
		return optimize[[2]float64, [4]float64](ctx, thread, &req)
	case 3:
		return optimize[[3]float64, [9]float64](ctx, thread, &req)
	case 4:
		return optimize[[4]float64, [16]float64](ctx, thread, &req)
	case 5:
		return optimize[[5]float64, [25]float64](ctx, thread, &req)
	case 6:
		return optimize[[6]float64, [36]float64](ctx, thread, &req)
	case 7:
		return optimize[[7]float64, [49]float64](ctx, thread, &req)
	case 8:
		return optimize[[8]float64, [64]float64](ctx, thread, &req)
	case 9:
		return optimize[[9]float64, [81]float64](ctx, thread, &req)
	case 10:
		return optimize[[10]float64, [100]float64](ctx, thread, &req)
	case 11:
		return optimize[[11]float64, [121]float64](ctx, thread, &req)
	case 12:
		return optimize[[12]float64, [144]float64](ctx, thread, &req)
	case 13:
		return optimize[[13]float64, [169]float64](ctx, thread, &req)
	case 14:
		return optimize[[14]float64, [196]float64](ctx, thread, &req)
	case 15:
		return optimize[[15]float64, [225]float64](ctx, thread, &req)
	default:
		return nil, &UnsupportedDimensionError{Dimension: req.Dimension}
	}
}
