// Package matrixgame implements solvers for normal-form games given as
// dense payoff matrices.
//
// A Matrix is indexed [row][column]. Single-population dynamics
// (FictitiousPlay, ReplicatorDynamics) interpret each row as the payoff of
// a pure strategy against every opponent strategy; SupportEnumeration works
// on a bimatrix game with one payoff matrix per player.
package matrixgame

import (
	"encoding/json"
	"math"
)

// Matrix is a dense payoff matrix.
type Matrix [][]float64

// Zeros returns an n x n matrix of zeros.
func Zeros(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}

	return m
}

// IsSquare returns true if m has as many columns in every row as it has rows.
func (m Matrix) IsSquare() bool {
	for _, row := range m {
		if len(row) != len(m) {
			return false
		}
	}

	return true
}

// IsFinite returns true if no entry of m is NaN or infinite.
func (m Matrix) IsFinite() bool {
	for _, row := range m {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}

	return true
}

func (m Matrix) Diagonal() []float64 {
	result := make([]float64, len(m))
	for i := range m {
		result[i] = m[i][i]
	}

	return result
}

func (m Matrix) Transpose() Matrix {
	if len(m) == 0 {
		return Matrix{}
	}

	result := make(Matrix, len(m[0]))
	for j := range result {
		result[j] = make([]float64, len(m))
		for i := range m {
			result[j][i] = m[i][j]
		}
	}

	return result
}

// MulVec computes m·v into dst, growing it if needed, and returns it.
func (m Matrix) MulVec(v []float64, dst []float64) []float64 {
	if cap(dst) < len(m) {
		dst = make([]float64, len(m))
	}
	dst = dst[:len(m)]
	for i, row := range m {
		dst[i] = dot(row, v)
	}

	return dst
}

// MarshalJSON encodes an empty or nil matrix as [] rather than null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("[]"), nil
	}

	return json.Marshal([][]float64(m))
}

func dot(a, b []float64) float64 {
	var total float64
	for i, x := range a {
		total += x * b[i]
	}

	return total
}

func uniform(n int) []float64 {
	result := make([]float64, n)
	for i := range result {
		result[i] = 1.0 / float64(n)
	}

	return result
}
