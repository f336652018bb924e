package matrixgame

import (
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Tolerance bounds the numerical slack allowed when checking that a
// candidate equilibrium has the claimed support and is a best response.
const Tolerance = 1e-9

var (
	ErrEmptyGame       = errors.New("game has no strategies")
	ErrShapeMismatch   = errors.New("payoff matrices have inconsistent shapes")
	ErrNonFinitePayoff = errors.New("payoff matrix has non-finite entries")
)

// Equilibrium is a Nash equilibrium of a bimatrix game: one mixed strategy
// for the row player and one for the column player.
type Equilibrium struct {
	Row    []float64 `json:"row"`
	Column []float64 `json:"column"`
}

// SupportEnumeration returns the Nash equilibria of the bimatrix game in
// which the row player receives a[i][j] and the column player b[i][j].
//
// Every pair of non-empty supports is tried. For each pair the indifference
// conditions are solved: the column strategy must make the row player
// indifferent across the row support, and vice versa. Support pairs whose
// systems are not square (supports of different sizes) or are singular are
// skipped, which means degenerate games may have equilibria that are not
// reported. A candidate is kept if both strategies put positive mass exactly
// on their support and no pure strategy outside the support pays more.
//
// Errors are returned only for malformed input: empty, ragged, mismatched or
// non-finite matrices.
func SupportEnumeration(a, b Matrix) ([]Equilibrium, error) {
	if err := validateBimatrix(a, b); err != nil {
		return nil, err
	}

	nRows, nCols := len(a), len(a[0])
	bt := b.Transpose()
	result := []Equilibrium{}
	for _, rowSupport := range supports(nRows) {
		for _, colSupport := range supports(nCols) {
			col, ok := solveIndifference(a, rowSupport, colSupport)
			if !ok {
				continue
			}

			row, ok := solveIndifference(bt, colSupport, rowSupport)
			if !ok {
				continue
			}

			if !isBestResponse(a, col, rowSupport) || !isBestResponse(bt, row, colSupport) {
				continue
			}

			result = append(result, Equilibrium{Row: row, Column: col})
		}
	}

	if len(result)%2 == 0 {
		glog.V(2).Infof("Found an even number (%d) of equilibria, game is degenerate", len(result))
	}

	return result, nil
}

func validateBimatrix(a, b Matrix) error {
	if len(a) == 0 || len(a[0]) == 0 {
		return ErrEmptyGame
	}

	if len(b) != len(a) {
		return errors.Wrapf(ErrShapeMismatch, "%d rows vs %d rows", len(a), len(b))
	}

	nCols := len(a[0])
	for i := range a {
		if len(a[i]) != nCols || len(b[i]) != nCols {
			return errors.Wrapf(ErrShapeMismatch, "row %d", i)
		}
	}

	if !a.IsFinite() || !b.IsFinite() {
		return ErrNonFinitePayoff
	}

	return nil
}

// solveIndifference finds the opponent strategy, supported on
// opponentSupport, that makes every pure strategy in support (rows of
// payoff) yield the same expected payoff.
func solveIndifference(payoff Matrix, support, opponentSupport []int) ([]float64, bool) {
	n := len(payoff[0])
	inSupport := make([]bool, n)
	for _, j := range opponentSupport {
		inSupport[j] = true
	}

	var eqs [][]float64
	var rhs []float64
	for k := 1; k < len(support); k++ {
		eq := make([]float64, n)
		for j := range eq {
			eq[j] = payoff[support[k]][j] - payoff[support[k-1]][j]
		}
		eqs = append(eqs, eq)
		rhs = append(rhs, 0)
	}

	for j := 0; j < n; j++ {
		if !inSupport[j] {
			eq := make([]float64, n)
			eq[j] = 1
			eqs = append(eqs, eq)
			rhs = append(rhs, 0)
		}
	}

	ones := make([]float64, n)
	for j := range ones {
		ones[j] = 1
	}
	eqs = append(eqs, ones)
	rhs = append(rhs, 1)

	x, ok := solveLinear(eqs, rhs)
	if !ok {
		return nil, false
	}

	for j, v := range x {
		if inSupport[j] {
			if v <= Tolerance {
				return nil, false
			}
		} else {
			if math.Abs(v) > Tolerance {
				return nil, false
			}
			x[j] = 0
		}
	}

	return x, true
}

// isBestResponse checks that no pure strategy pays more against opponent
// than the best strategy in support.
func isBestResponse(payoff Matrix, opponent []float64, support []int) bool {
	u := payoff.MulVec(opponent, nil)
	best, _ := argMax(u)
	supportBest := math.Inf(-1)
	for _, i := range support {
		supportBest = math.Max(supportBest, u[i])
	}

	return best <= supportBest+Tolerance*math.Max(1, math.Abs(best))
}

// supports enumerates the non-empty subsets of {0, ..., n-1}, smallest
// first and in lexicographic order within a size.
func supports(n int) [][]int {
	var result [][]int
	for size := 1; size <= n; size++ {
		result = combinations(n, size, 0, nil, result)
	}

	return result
}

func combinations(n, size, start int, current []int, result [][]int) [][]int {
	if len(current) == size {
		return append(result, append([]int(nil), current...))
	}

	for i := start; i < n; i++ {
		result = combinations(n, size, i+1, append(current, i), result)
	}

	return result
}
