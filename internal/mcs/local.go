package mcs

import "math"

// localSearch runs a compass search around x, starting with half the given
// box widths as step sizes. It returns false once the evaluation budget is
// used up.
func (s *search[V]) localSearch(x V, fx float64, width V) bool {
	n := len(x)
	var step V
	for i := 0; i < n; i++ {
		step[i] = width[i] / 2
	}

	for iter := 0; iter < s.p.LocalSearchDepth; iter++ {
		improved := false
		for i := 0; i < n; i++ {
			if !s.active[i] {
				continue
			}
			for _, dir := range [...]float64{1, -1} {
				y := x
				y[i] = clamp(x[i]+dir*step[i], s.u[i], s.v[i])
				if y[i] == x[i] {
					continue
				}
				fy, ok := s.eval(&y, true)
				if !ok {
					return false
				}
				if fy < fx {
					x, fx = y, fy
					improved = true
					break
				}
			}
		}
		if improved {
			continue
		}

		converged := true
		for i := 0; i < n; i++ {
			step[i] /= 2
			if step[i] > s.p.Gamma*(s.v[i]-s.u[i]) {
				converged = false
			}
		}
		if converged {
			break
		}
	}
	return true
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
