package opt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
//
// Mayfly only supports one scalar range for every coordinate, so the search
// runs on the unit cube and each candidate is mapped onto [lower, upper]
// before eval sees it.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error) {
	if len(lower) != dim || len(upper) != dim {
		return nil, 0, fmt.Errorf("bounds have %d/%d entries, want %d", len(lower), len(upper), dim)
	}
	for i := 0; i < dim; i++ {
		if !(lower[i] < upper[i]) {
			return nil, 0, fmt.Errorf("lower bound %g is not below upper bound %g (coordinate %d)", lower[i], upper[i], i)
		}
	}

	toBox := func(unit []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			u := math.Max(0, math.Min(1, unit[i]))
			x[i] = lower[i] + u*(upper[i]-lower[i])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(unit []float64) float64 {
		return eval(toBox(unit))
	}
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	return toBox(result.GlobalBest.Position), result.GlobalBest.Cost, nil
}
