package marketgame

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame/matrixgame"
)

const (
	// DefaultInfluence weights how much an opponent's share change
	// counts against a company's own in off-diagonal payoffs.
	DefaultInfluence = 0.25
	// DefaultCap bounds every payoff cell, in percentage points.
	DefaultCap = 50.0

	totalFloor = 1e-9
	// Relative volume changes within this band are classified as Stable.
	stableThreshold = 0.02
)

// PayoffParams are the constants of the bounded linear interaction model
// used to turn share changes into payoffs.
type PayoffParams struct {
	Influence float64 `json:"influence"`
	Cap       float64 `json:"cap"`
}

func DefaultPayoffParams() PayoffParams {
	return PayoffParams{
		Influence: DefaultInfluence,
		Cap:       DefaultCap,
	}
}

func (p PayoffParams) Validate() error {
	if math.IsNaN(p.Influence) || p.Influence < 0 || p.Influence > 1 {
		return errors.Errorf("influence must be in [0, 1], got %v", p.Influence)
	}

	if !(p.Cap > 0) || math.IsInf(p.Cap, 0) {
		return errors.Errorf("cap must be positive and finite, got %v", p.Cap)
	}

	return nil
}

// Move classifies a company's month-over-month volume change.
type Move uint8

const (
	Decrease Move = iota
	Stable
	Increase
)

var moveStr = [...]string{
	"decrease",
	"stable",
	"increase",
}

func (m Move) String() string {
	if int(m) >= len(moveStr) {
		return fmt.Sprintf("Move(%d)", m)
	}

	return moveStr[m]
}

func (m Move) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(text []byte) error {
	for i, s := range moveStr {
		if s == string(text) {
			*m = Move(i)
			return nil
		}
	}

	return errors.Errorf("unknown move %q", text)
}

// classifyMove compares volumes relative to the previous month, or in
// absolute terms when the previous volume is zero.
func classifyMove(prev, curr float64) Move {
	delta := curr - prev
	if prev != 0 {
		delta /= prev
	}

	if math.IsNaN(delta) || math.IsInf(delta, 0) || math.Abs(delta) <= stableThreshold {
		return Stable
	} else if delta > 0 {
		return Increase
	}

	return Decrease
}

// Transition is the game built for one area between two consecutive months.
type Transition struct {
	// Companies observed anywhere in the area, sorted. Indexes every slice
	// and the payoff matrix.
	Companies []string
	// Change in each company's share of area volume, in percentage points.
	ShareChange []float64
	Moves       []Move
	Payoff      matrixgame.Matrix
}

// BuildPayoffMatrix returns the payoff matrix of the transition into
// months[monthIndex] together with the company ordering that indexes it.
func BuildPayoffMatrix(agg *Aggregates, area string, monthIndex int, months []string, params PayoffParams) (matrixgame.Matrix, []string) {
	t := BuildTransition(agg, area, monthIndex, months, params)
	return t.Payoff, t.Companies
}

// BuildTransition computes share changes from months[monthIndex-1] to
// months[monthIndex] and fills the payoff matrix
//
//	M[i][i] = dPP[i]
//	M[i][j] = dPP[i] - influence*dPP[j]
//
// with every cell clamped to [-cap, cap]. The first month has no
// predecessor and yields a zero matrix. Missing observations count as 0.
func BuildTransition(agg *Aggregates, area string, monthIndex int, months []string, params PayoffParams) Transition {
	if monthIndex < 0 || monthIndex >= len(months) {
		panic(fmt.Sprintf("month index %d out of range for %d months", monthIndex, len(months)))
	}

	companies := agg.Companies(area)
	n := len(companies)
	t := Transition{
		Companies:   companies,
		ShareChange: make([]float64, n),
		Moves:       make([]Move, n),
		Payoff:      matrixgame.Zeros(n),
	}

	if monthIndex == 0 || n == 0 {
		for i := range t.Moves {
			t.Moves[i] = Stable
		}
		checkShape(t.Payoff, companies)
		return t
	}

	prev, curr := months[monthIndex-1], months[monthIndex]
	prevShares := agg.Shares(area, prev, companies)
	currShares := agg.Shares(area, curr, companies)
	for i, c := range companies {
		t.ShareChange[i] = (currShares[i] - prevShares[i]) * 100
		t.Moves[i] = classifyMove(agg.Volume(area, prev, c), agg.Volume(area, curr, c))
	}

	fillPayoff(t.Payoff, t.ShareChange, params)
	checkShape(t.Payoff, companies)
	return t
}

func fillPayoff(m matrixgame.Matrix, shareChange []float64, params PayoffParams) {
	for i, own := range shareChange {
		for j, other := range shareChange {
			v := own
			if i != j {
				v = own - params.Influence*other
			}
			m[i][j] = clamp(v, params.Cap)
		}
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// checkShape enforces that a payoff matrix is indexed by companies.
// A mismatch is a programming error.
func checkShape(m matrixgame.Matrix, companies []string) {
	if len(m) != len(companies) || !m.IsSquare() {
		panic(fmt.Sprintf("payoff matrix with %d rows does not match %d companies", len(m), len(companies)))
	}
}
