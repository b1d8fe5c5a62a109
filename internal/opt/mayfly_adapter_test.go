package opt

import (
	"math"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42) // maxIters, popSize, seed

	dim := 3
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = -10
		upper[i] = 10
	}

	best, cost, err := optimizer.Run(sphere, lower, upper, dim)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}

	// Should converge close to zero
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}

	// Check that best params are near origin
	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyAdapterPerCoordinateBounds(t *testing.T) {
	optimizer := NewMayfly(50, 20, 7)

	lower := []float64{2, -100}
	upper := []float64{3, -50}

	var outside int
	eval := func(x []float64) float64 {
		for i := range x {
			if x[i] < lower[i] || x[i] > upper[i] {
				outside++
			}
		}
		return sphere(x)
	}

	best, _, err := optimizer.Run(eval, lower, upper, 2)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outside != 0 {
		t.Errorf("Objective saw %d coordinates outside the bounds", outside)
	}
	for i := range best {
		if best[i] < lower[i] || best[i] > upper[i] {
			t.Errorf("Best coordinate %d = %f outside [%f, %f]", i, best[i], lower[i], upper[i])
		}
	}
}

func TestMayflyAdapterRejectsBadBounds(t *testing.T) {
	optimizer := NewMayfly(10, 20, 1)

	if _, _, err := optimizer.Run(sphere, []float64{1}, []float64{0}, 1); err == nil {
		t.Error("Expected error for inverted bounds")
	}
	if _, _, err := optimizer.Run(sphere, []float64{0}, []float64{1, 2}, 1); err == nil {
		t.Error("Expected error for mismatched bounds")
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	dim := 2
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	// Run twice with same seed (popSize must be >=20 for mayfly v0.1.0)
	optimizer1 := NewMayfly(50, 20, 123)
	_, cost1, _ := optimizer1.Run(sphere, lower, upper, dim)

	optimizer2 := NewMayfly(50, 20, 123)
	_, cost2, _ := optimizer2.Run(sphere, lower, upper, dim)

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}
