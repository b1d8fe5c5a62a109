package bridge

import (
	"errors"
	"fmt"
)

// ErrReentrant is returned when an optimization is started on a thread that
// is already running one, for example from inside an objective function.
var ErrReentrant = errors.New("optimization already in progress on this thread")

// UnsupportedDimensionError reports a dimension outside MinDimension..MaxDimension.
type UnsupportedDimensionError struct {
	Dimension int
}

func (e *UnsupportedDimensionError) Error() string {
	return fmt.Sprintf("N=%d is not supported (supported dimensions are %d..%d)", e.Dimension, MinDimension, MaxDimension)
}

// ShapeMismatchError reports an input buffer whose shape does not match the
// requested dimension.
type ShapeMismatchError struct {
	Buffer   string
	Expected []int
	Actual   []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s has shape %v, want %v", e.Buffer, e.Actual, e.Expected)
}

// KernelError wraps a failure reported by the optimization kernel itself.
// Its message is the kernel's, unchanged.
type KernelError struct {
	Err error
}

func (e *KernelError) Error() string {
	return e.Err.Error()
}

func (e *KernelError) Unwrap() error {
	return e.Err
}
