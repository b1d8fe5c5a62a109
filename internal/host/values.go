package host

import (
	"fmt"

	"go.starlark.net/starlark"
)

// NewList builds a Starlark list of floats from x.
func NewList(x []float64) *starlark.List {
	elems := make([]starlark.Value, len(x))
	for i, v := range x {
		elems[i] = starlark.Float(v)
	}
	return starlark.NewList(elems)
}

// Floats reads an iterable of numbers (ints or floats) into a slice.
func Floats(name string, v starlark.Value) ([]float64, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a sequence of numbers", name, v.Type())
	}

	var out []float64
	iter := iterable.Iterate()
	defer iter.Done()

	var elem starlark.Value
	for i := 0; iter.Next(&elem); i++ {
		f, ok := starlark.AsFloat(elem)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: got %s, want a number", name, i, elem.Type())
		}
		out = append(out, f)
	}
	return out, nil
}

// Rows reads a sequence of number sequences (a row-major 2D array).
// Rows may differ in length; shape checks are left to the caller.
func Rows(name string, v starlark.Value) ([][]float64, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a sequence of rows", name, v.Type())
	}

	var rows [][]float64
	iter := iterable.Iterate()
	defer iter.Done()

	var elem starlark.Value
	for i := 0; iter.Next(&elem); i++ {
		row, err := Floats(fmt.Sprintf("%s[%d]", name, i), elem)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Lookup finds a callable global by name.
func Lookup(globals starlark.StringDict, name string) (starlark.Callable, error) {
	v, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("script does not define %q", name)
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%q is a %s, not a function", name, v.Type())
	}
	return fn, nil
}
