package bridge

import "github.com/cwbudde/mcsbridge/internal/mcs"

// toVector copies src into a fixed-size vector after checking its length.
func toVector[V mcs.Vector](buffer string, src []float64) (V, error) {
	var v V
	if len(src) != len(v) {
		return v, &ShapeMismatchError{Buffer: buffer, Expected: []int{len(v)}, Actual: []int{len(src)}}
	}
	for i := 0; i < len(v); i++ {
		v[i] = src[i]
	}
	return v, nil
}

// toMatrix flattens an n×n row-major matrix into M.
func toMatrix[M mcs.Matrix](buffer string, rows [][]float64, n int) (M, error) {
	var m M
	expected := []int{n, n}
	if len(rows) != n {
		actual := []int{len(rows)}
		if len(rows) > 0 {
			actual = append(actual, len(rows[0]))
		}
		return m, &ShapeMismatchError{Buffer: buffer, Expected: expected, Actual: actual}
	}
	for i, row := range rows {
		if len(row) != n {
			return m, &ShapeMismatchError{Buffer: buffer, Expected: expected, Actual: []int{len(rows), len(row)}}
		}
		for j, x := range row {
			m[i*n+j] = x
		}
	}
	return m, nil
}

func fromVector[V mcs.Vector](v *V) []float64 {
	out := make([]float64, len(*v))
	for i := range out {
		out[i] = (*v)[i]
	}
	return out
}

// OnesHessian returns the dense n×n sparsity pattern (every pair of
// coordinates interacts).
func OnesHessian(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = 1
		}
	}
	return rows
}
