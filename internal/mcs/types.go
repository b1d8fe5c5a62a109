package mcs

import (
	"context"
	"fmt"
)

// Vector is the set of fixed-size point types the kernel is compiled for.
// The dimension of a search is the array length of V.
type Vector interface {
	[1]float64 | [2]float64 | [3]float64 | [4]float64 | [5]float64 |
		[6]float64 | [7]float64 | [8]float64 | [9]float64 | [10]float64 |
		[11]float64 | [12]float64 | [13]float64 | [14]float64 | [15]float64
}

// Matrix is the set of fixed-size N×N matrices stored row-major, one per
// supported dimension.
type Matrix interface {
	[1]float64 | [4]float64 | [9]float64 | [16]float64 | [25]float64 |
		[36]float64 | [49]float64 | [64]float64 | [81]float64 | [100]float64 |
		[121]float64 | [144]float64 | [169]float64 | [196]float64 | [225]float64
}

// Func is the objective signature the kernel calls. Implementations must not
// retain x after returning.
type Func[V Vector] func(ctx context.Context, x *V) float64

// Params holds the search budget and tuning knobs.
type Params struct {
	// NSweeps is the maximum number of sweeps over the box levels
	NSweeps int
	// MaxEvaluations caps the total number of objective calls
	MaxEvaluations int
	// LocalSearchDepth is the iteration limit of each local search (0 disables it)
	LocalSearchDepth int
	// Gamma is the relative step size at which a local search stops
	Gamma float64
	// SMax is the number of box levels; boxes at level SMax are not split
	SMax int
}

// ExitFlag tells why the kernel stopped.
type ExitFlag int

const (
	// NormalShutdown means no box below level SMax was left to split
	NormalShutdown ExitFlag = iota
	// StopNfExceeded means the evaluation budget was used up
	StopNfExceeded
	// StopNsweepsExceeded means the sweep budget was used up
	StopNsweepsExceeded
)

func (f ExitFlag) String() string {
	switch f {
	case NormalShutdown:
		return "NormalShutdown"
	case StopNfExceeded:
		return "StopNfExceeded"
	case StopNsweepsExceeded:
		return "StopNsweepsExceeded"
	default:
		return fmt.Sprintf("ExitFlag(%d)", int(f))
	}
}

// Result is the kernel's output record.
type Result[V Vector] struct {
	XBest V
	FBest float64
	NCall int // total objective calls
	NCloc int // calls made by local searches
	Flag  ExitFlag
}
