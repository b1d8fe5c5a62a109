package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/mcsbridge/internal/host"
	"go.starlark.net/starlark"
)

// Builtins returns the functions the bridge exposes to Starlark scripts:
//
//	mcs(n, func, u, v, nsweeps, nf, local, gamma, smax, hess=None)
//	    -> (xbest, fbest, ncall, ncloc, exit_flag)
//	mayfly(n, func, u, v, iters=100, pop=30, seed=42)
//	    -> (xbest, fbest, ncall)
//
// hess=None stands for the dense sparsity pattern.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		"mcs":    starlark.NewBuiltin("mcs", mcsBuiltin),
		"mayfly": starlark.NewBuiltin("mayfly", mayflyBuiltin),
	}
}

func mcsBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		n                      int
		fn                     starlark.Callable
		u, v, gamma            starlark.Value
		nsweeps, nf, local, sm int
		hess                   starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"n", &n,
		"func", &fn,
		"u", &u,
		"v", &v,
		"nsweeps", &nsweeps,
		"nf", &nf,
		"local", &local,
		"gamma", &gamma,
		"smax", &sm,
		"hess?", &hess,
	); err != nil {
		return nil, err
	}

	g, ok := starlark.AsFloat(gamma)
	if !ok {
		return nil, fmt.Errorf("%s: gamma: got %s, want a number", b.Name(), gamma.Type())
	}

	req := Request{
		Dimension:        n,
		Objective:        fn,
		NSweeps:          nsweeps,
		MaxEvaluations:   nf,
		LocalSearchDepth: local,
		Gamma:            g,
		SMax:             sm,
	}

	var err error
	if req.Lower, err = host.Floats("u", u); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if req.Upper, err = host.Floats("v", v); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	switch {
	case hess != starlark.None:
		if req.Hessian, err = host.Rows("hess", hess); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	case n >= MinDimension && n <= MaxDimension:
		req.Hessian = OnesHessian(n)
	}

	res, err := Optimize(context.Background(), thread, req)
	if err != nil {
		var kernelErr *KernelError
		if errors.As(err, &kernelErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return res.Tuple(), nil
}

func mayflyBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		n    int
		fn   starlark.Callable
		u, v starlark.Value
		req  = MayflyRequest{Iterations: 100, Population: 30}
		seed = 42
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"n", &n,
		"func", &fn,
		"u", &u,
		"v", &v,
		"iters?", &req.Iterations,
		"pop?", &req.Population,
		"seed?", &seed,
	); err != nil {
		return nil, err
	}
	req.Dimension = n
	req.Objective = fn
	req.Seed = int64(seed)

	var err error
	if req.Lower, err = host.Floats("u", u); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if req.Upper, err = host.Floats("v", v); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	res, err := OptimizeMayfly(context.Background(), thread, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Tuple{
		host.NewList(res.BestPoint),
		starlark.Float(res.BestValue),
		starlark.MakeInt(res.Evaluations),
	}, nil
}
