package matrixgame

import (
	"math"
)

// pivotEpsilon is the smallest pivot accepted before a system is
// considered singular.
const pivotEpsilon = 1e-12

// solveLinear solves the square system a·x = b by Gaussian elimination with
// partial pivoting. It returns false if a is not square or is singular.
// The inputs are not modified.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, false
	}

	// Augmented copy [a | b].
	aug := make([][]float64, n)
	for i, row := range a {
		if len(row) != n {
			return nil, false
		}
		aug[i] = make([]float64, n+1)
		copy(aug[i], row)
		aug[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < pivotEpsilon {
			return nil, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		for r := col + 1; r < n; r++ {
			f := aug[r][col] / aug[col][col]
			if f == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				aug[r][c] -= f * aug[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := aug[i][n]
		for j := i + 1; j < n; j++ {
			sum -= aug[i][j] * x[j]
		}
		x[i] = sum / aug[i][i]
	}

	return x, true
}
