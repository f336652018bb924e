package marketgame

import (
	"math"
	"sort"

	"github.com/golang/glog"
	"github.com/hashicorp/golang-lru"

	"github.com/timpalpant/marketgame/matrixgame"
)

// EquilibriumRecord holds the Nash equilibria of the 2-player game between
// the two focal companies of a transition. It is empty when the area has
// fewer than two companies; Error is set when the game could not be solved.
type EquilibriumRecord struct {
	Players    []string                 `json:"players,omitempty"`
	MatrixPair matrixgame.Matrix        `json:"matrix_pair,omitempty"`
	Equilibria []matrixgame.Equilibrium `json:"equilibria"`
	Error      string                   `json:"error,omitempty"`
}

func emptyEquilibriumRecord() EquilibriumRecord {
	return EquilibriumRecord{Equilibria: []matrixgame.Equilibrium{}}
}

// Available returns true if the record was solved for a pair of players.
func (r EquilibriumRecord) Available() bool {
	return len(r.Players) == 2 && r.Error == ""
}

// HasPlayer returns true if company is one of the focal players.
func (r EquilibriumRecord) HasPlayer(company string) bool {
	for _, p := range r.Players {
		if p == company {
			return true
		}
	}

	return false
}

// FocalPlayers returns the indices of the two companies with the largest
// absolute self-payoff: i is the runner-up and j the top. Ties keep index
// order, so among equal magnitudes the higher index ranks higher.
func FocalPlayers(m matrixgame.Matrix) (i, j int) {
	diag := m.Diagonal()
	idx := make([]int, len(diag))
	for k := range idx {
		idx[k] = k
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(diag[idx[a]]) < math.Abs(diag[idx[b]])
	})

	n := len(idx)
	return idx[n-2], idx[n-1]
}

// SolveFocalEquilibria reduces the N-company payoff matrix to a 2x2 game
// between the two most active companies (see FocalPlayers) and enumerates
// its Nash equilibria.
//
// The game is symmetric by construction: the row player receives
//
//	A = [[M[i][i], M[i][j]], [M[j][i], M[j][j]]]
//
// and the column player Aᵀ. This is a modeling simplification for the most
// informative pair, not an N-player equilibrium of the whole area.
func SolveFocalEquilibria(m matrixgame.Matrix, companies []string) EquilibriumRecord {
	return solveFocalEquilibria(m, companies, solveSymmetric)
}

func solveFocalEquilibria(m matrixgame.Matrix, companies []string, solve func(matrixgame.Matrix) ([]matrixgame.Equilibrium, error)) EquilibriumRecord {
	if len(m) < 2 {
		return emptyEquilibriumRecord()
	}
	checkShape(m, companies)

	i, j := FocalPlayers(m)
	a := matrixgame.Matrix{
		{m[i][i], m[i][j]},
		{m[j][i], m[j][j]},
	}

	record := EquilibriumRecord{
		Players:    []string{companies[i], companies[j]},
		MatrixPair: a,
		Equilibria: []matrixgame.Equilibrium{},
	}

	eqs, err := solve(a)
	if err != nil {
		glog.V(1).Infof("Unable to solve game between %v and %v: %v", companies[i], companies[j], err)
		record.Error = err.Error()
		return record
	}

	record.Equilibria = eqs
	return record
}

func solveSymmetric(a matrixgame.Matrix) ([]matrixgame.Equilibrium, error) {
	return matrixgame.SupportEnumeration(a, a.Transpose())
}

// EquilibriumCache memoizes solved 2x2 symmetric games by the exact bit
// pattern of their payoffs. Every area's first month produces the zero
// game, and quiet months often repeat a clamped pattern.
type EquilibriumCache struct {
	cache    *lru.Cache
	recorder Recorder
}

type gameKey [4]uint64

type cachedSolution struct {
	equilibria []matrixgame.Equilibrium
	err        error
}

func NewEquilibriumCache(size int, recorder Recorder) (*EquilibriumCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &EquilibriumCache{
		cache:    cache,
		recorder: recorder,
	}, nil
}

// SolveFocalEquilibria is like the package-level SolveFocalEquilibria but
// consults the cache before enumerating supports.
func (c *EquilibriumCache) SolveFocalEquilibria(m matrixgame.Matrix, companies []string) EquilibriumRecord {
	return solveFocalEquilibria(m, companies, c.solve)
}

func (c *EquilibriumCache) Len() int {
	return c.cache.Len()
}

func (c *EquilibriumCache) solve(a matrixgame.Matrix) ([]matrixgame.Equilibrium, error) {
	key := gameKey{
		math.Float64bits(a[0][0]), math.Float64bits(a[0][1]),
		math.Float64bits(a[1][0]), math.Float64bits(a[1][1]),
	}

	if cached, ok := c.cache.Get(key); ok {
		c.recorder.RecordCacheLookup(true)
		sol := cached.(cachedSolution)
		return copyEquilibria(sol.equilibria), sol.err
	}

	c.recorder.RecordCacheLookup(false)
	eqs, err := solveSymmetric(a)
	c.cache.Add(key, cachedSolution{equilibria: copyEquilibria(eqs), err: err})
	return eqs, err
}

func copyEquilibria(eqs []matrixgame.Equilibrium) []matrixgame.Equilibrium {
	if eqs == nil {
		return nil
	}

	result := make([]matrixgame.Equilibrium, len(eqs))
	for i, eq := range eqs {
		result[i] = matrixgame.Equilibrium{
			Row:    append([]float64(nil), eq.Row...),
			Column: append([]float64(nil), eq.Column...),
		}
	}

	return result
}
