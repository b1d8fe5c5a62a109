// Package mcs implements a multilevel coordinate search over fixed-size
// vectors. The dimension is part of the type: every entry point is
// instantiated with one array type from Vector and the matching Matrix.
package mcs

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// box is a sub-rectangle of the search space with its evaluated base point.
type box[V Vector] struct {
	lo, hi V
	x      V
	f      float64
	level  int
}

type search[V Vector] struct {
	ctx       context.Context
	f         Func[V]
	u, v      V
	p         Params
	active    []bool
	boxes     []box[V]
	best      V
	bestWidth V
	fbest     float64
	ncall     int
	ncloc     int
}

// Minimize searches the box [u, v] for the minimum of f.
//
// hess is the Hessian sparsity pattern: a non-zero entry (i, j) means
// coordinates i and j interact. Coordinates with an all-zero row are left
// alone by the local search. An error is returned, before any evaluation,
// when the bounds or parameters are unusable.
func Minimize[V Vector, M Matrix](ctx context.Context, f Func[V], u, v *V, p Params, hess *M) (Result[V], error) {
	var res Result[V]
	if f == nil {
		return res, errors.New("mcs: objective function is nil")
	}
	n := len(*u)
	if len(*hess) != n*n {
		return res, fmt.Errorf("mcs: hessian has %d entries, want %d", len(*hess), n*n)
	}
	if err := validate(*u, *v, p); err != nil {
		return res, err
	}

	s := &search[V]{
		ctx:    ctx,
		f:      f,
		u:      *u,
		v:      *v,
		p:      p,
		active: activeCoordinates(hess, n),
		fbest:  math.Inf(1),
	}

	root := box[V]{lo: s.u, hi: s.v, level: 1}
	for i := 0; i < n; i++ {
		root.x[i] = s.u[i] + (s.v[i]-s.u[i])/2
		s.bestWidth[i] = s.v[i] - s.u[i]
	}
	root.f, _ = s.eval(&root.x, false)
	s.boxes = append(s.boxes, root)

	flag := StopNsweepsExceeded
sweeps:
	for sweep := 0; sweep < p.NSweeps; sweep++ {
		split := false
		for level := 1; level < p.SMax; level++ {
			k := s.pick(level)
			if k < 0 {
				continue
			}
			if !s.split(k) {
				flag = StopNfExceeded
				break sweeps
			}
			split = true
		}
		if !split {
			flag = NormalShutdown
			break
		}
	}

	if flag != StopNfExceeded && p.LocalSearchDepth > 0 {
		if !s.localSearch(s.best, s.fbest, s.bestWidth) {
			flag = StopNfExceeded
		}
	}

	res.XBest = s.best
	res.FBest = s.fbest
	res.NCall = s.ncall
	res.NCloc = s.ncloc
	res.Flag = flag
	return res, nil
}

func validate[V Vector](u, v V, p Params) error {
	for i := 0; i < len(u); i++ {
		if math.IsInf(u[i], 0) || math.IsInf(v[i], 0) {
			return fmt.Errorf("mcs: bounds must be finite (coordinate %d)", i)
		}
		if !(u[i] < v[i]) {
			return fmt.Errorf("mcs: lower bound %g is not below upper bound %g (coordinate %d)", u[i], v[i], i)
		}
	}
	switch {
	case p.NSweeps < 1:
		return fmt.Errorf("mcs: nsweeps must be at least 1, got %d", p.NSweeps)
	case p.MaxEvaluations < 1:
		return fmt.Errorf("mcs: nf must be at least 1, got %d", p.MaxEvaluations)
	case p.LocalSearchDepth < 0:
		return fmt.Errorf("mcs: local must not be negative, got %d", p.LocalSearchDepth)
	case p.Gamma < 0 || math.IsNaN(p.Gamma):
		return fmt.Errorf("mcs: gamma must not be negative, got %g", p.Gamma)
	case p.SMax < 2:
		return fmt.Errorf("mcs: smax must be at least 2, got %d", p.SMax)
	}
	return nil
}

func activeCoordinates[M Matrix](hess *M, n int) []bool {
	h := *hess
	active := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if h[i*n+j] != 0 {
				active[i] = true
				break
			}
		}
	}
	return active
}

// eval calls the objective once. It reports false without calling f when
// the evaluation budget is used up.
func (s *search[V]) eval(x *V, local bool) (float64, bool) {
	if s.ncall >= s.p.MaxEvaluations {
		return 0, false
	}
	s.ncall++
	if local {
		s.ncloc++
	}
	y := s.f(s.ctx, x)
	if math.IsNaN(y) {
		y = math.Inf(1)
	}
	if s.ncall == 1 || y < s.fbest {
		s.fbest = y
		s.best = *x
	}
	return y, true
}

// pick returns the index of the lowest box on the given level, or -1.
func (s *search[V]) pick(level int) int {
	k := -1
	for j := range s.boxes {
		if s.boxes[j].level != level {
			continue
		}
		if k < 0 || s.boxes[j].f < s.boxes[k].f {
			k = j
		}
	}
	return k
}

// split divides box k in three along its relatively widest coordinate.
func (s *search[V]) split(k int) bool {
	b := s.boxes[k]
	n := len(b.x)

	c, widest := 0, -1.0
	for i := 0; i < n; i++ {
		rel := (b.hi[i] - b.lo[i]) / (s.v[i] - s.u[i])
		if rel > widest {
			c, widest = i, rel
		}
	}

	w := (b.hi[c] - b.lo[c]) / 3
	left, mid, right := b, b, b
	left.hi[c] = b.lo[c] + w
	right.lo[c] = b.hi[c] - w
	mid.lo[c], mid.hi[c] = left.hi[c], right.lo[c]
	left.x[c] = b.lo[c] + w/2
	right.x[c] = b.hi[c] - w/2
	left.level, mid.level, right.level = b.level+1, b.level+1, b.level+1

	before := s.fbest
	var ok bool
	if left.f, ok = s.eval(&left.x, false); !ok {
		return false
	}
	if right.f, ok = s.eval(&right.x, false); !ok {
		return false
	}
	s.boxes[k] = mid
	s.boxes = append(s.boxes, left, right)

	if s.fbest < before {
		for i := 0; i < n; i++ {
			s.bestWidth[i] = left.hi[i] - left.lo[i]
		}
		if left.level == s.p.SMax && s.p.LocalSearchDepth > 0 {
			return s.localSearch(s.best, s.fbest, s.bestWidth)
		}
	}
	return true
}
