package marketgame

import (
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/timpalpant/marketgame/matrixgame"
)

type countingRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
	failures    map[string]int
	hits        int
	misses      int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		transitions: make(map[string]int),
		failures:    make(map[string]int),
	}
}

func (r *countingRecorder) RecordTransition(area string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[area]++
}

func (r *countingRecorder) RecordSolverFailure(solver string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[solver]++
}

func (r *countingRecorder) RecordSolverLatency(string, float64) {}

func (r *countingRecorder) RecordCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

// checkBestResponse verifies the equilibrium conditions of the symmetric
// game (a, aᵀ).
func checkBestResponse(t *testing.T, a matrixgame.Matrix, eq matrixgame.Equilibrium) {
	t.Helper()
	for _, s := range [][]float64{eq.Row, eq.Column} {
		var total float64
		for _, v := range s {
			if v < 0 {
				t.Errorf("negative probability in %v", s)
			}
			total += v
		}
		if math.Abs(total-1) > 1e-6 {
			t.Errorf("strategy %v sums to %v", s, total)
		}
	}

	rowPayoffs := a.MulVec(eq.Column, nil)
	colPayoffs := a.MulVec(eq.Row, nil) // (aᵀ)ᵀ·row
	var rowValue, colValue float64
	for i := range rowPayoffs {
		rowValue += eq.Row[i] * rowPayoffs[i]
		colValue += eq.Column[i] * colPayoffs[i]
	}
	for i := range rowPayoffs {
		if rowPayoffs[i] > rowValue+1e-6 {
			t.Errorf("row player improves by deviating to %d in %v: %v > %v", i, a, rowPayoffs[i], rowValue)
		}
		if colPayoffs[i] > colValue+1e-6 {
			t.Errorf("column player improves by deviating to %d in %v: %v > %v", i, a, colPayoffs[i], colValue)
		}
	}
}

func TestSolveFocalEquilibria_TooFewCompanies(t *testing.T) {
	for _, n := range []int{0, 1} {
		companies := []string{"A"}[:n]
		record := SolveFocalEquilibria(matrixgame.Zeros(n), companies)
		if record.Available() || len(record.Players) != 0 {
			t.Errorf("expected empty record for %d companies, got %+v", n, record)
		}
		if record.Equilibria == nil || len(record.Equilibria) != 0 {
			t.Errorf("expected empty (non-nil) equilibria, got %v", record.Equilibria)
		}
	}
}

func TestFocalPlayers(t *testing.T) {
	m := matrixgame.Matrix{
		{1, 0, 0, 0},
		{0, -5, 0, 0},
		{0, 0, 3, 0},
		{0, 0, 0, 5},
	}

	i, j := FocalPlayers(m)
	if i != 1 || j != 3 {
		t.Errorf("expected focal players (1, 3), got (%d, %d)", i, j)
	}

	i, j = FocalPlayers(matrixgame.Zeros(2))
	if i != 0 || j != 1 {
		t.Errorf("expected focal players (0, 1) on ties, got (%d, %d)", i, j)
	}
}

func TestSolveFocalEquilibria_TwoCompanies(t *testing.T) {
	m := matrixgame.Matrix{
		{10, 12.5},
		{-12.5, -10},
	}

	record := SolveFocalEquilibria(m, []string{"A", "B"})
	if !reflect.DeepEqual(record.Players, []string{"A", "B"}) {
		t.Errorf("expected players [A B], got %v", record.Players)
	}
	if diff := cmp.Diff(m, record.MatrixPair); diff != "" {
		t.Errorf("matrix pair (-want +got):\n%s", diff)
	}

	// A's first strategy strictly dominates: the unique equilibrium is pure.
	expected := []matrixgame.Equilibrium{{Row: []float64{1, 0}, Column: []float64{1, 0}}}
	if diff := cmp.Diff(expected, record.Equilibria, approx); diff != "" {
		t.Errorf("equilibria (-want +got):\n%s", diff)
	}

	for _, eq := range record.Equilibria {
		checkBestResponse(t, record.MatrixPair, eq)
	}
}

func TestSolveFocalEquilibria_PicksMostActivePair(t *testing.T) {
	m := matrixgame.Matrix{
		{-20, 1, 2},
		{3, 0.5, 4},
		{5, 6, 7},
	}

	record := SolveFocalEquilibria(m, []string{"A", "B", "C"})
	if !reflect.DeepEqual(record.Players, []string{"C", "A"}) {
		t.Errorf("expected players [C A], got %v", record.Players)
	}

	expected := matrixgame.Matrix{
		{7, 5},
		{2, -20},
	}
	if diff := cmp.Diff(expected, record.MatrixPair); diff != "" {
		t.Errorf("matrix pair (-want +got):\n%s", diff)
	}
}

func TestSolveFocalEquilibria_NonFiniteIsMarked(t *testing.T) {
	m := matrixgame.Matrix{
		{math.NaN(), 0},
		{0, 1},
	}

	record := SolveFocalEquilibria(m, []string{"A", "B"})
	if record.Error == "" || record.Available() {
		t.Errorf("expected error marker, got %+v", record)
	}
	if len(record.Equilibria) != 0 {
		t.Errorf("expected no equilibria, got %v", record.Equilibria)
	}
}

func TestSolveFocalEquilibria_BestResponseProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(123))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(4)
		m := matrixgame.Zeros(n)
		for i := range m {
			for j := range m[i] {
				// Coarse values make ties and degenerate games common.
				m[i][j] = float64(rng.Intn(11) - 5)
			}
		}

		companies := make([]string, n)
		for i := range companies {
			companies[i] = string(rune('A' + i))
		}

		record := SolveFocalEquilibria(m, companies)
		if record.Error != "" {
			t.Fatalf("unexpected error for %v: %v", m, record.Error)
		}
		for _, eq := range record.Equilibria {
			checkBestResponse(t, record.MatrixPair, eq)
		}
	}
}

func TestEquilibriumCache(t *testing.T) {
	recorder := newCountingRecorder()
	cache, err := NewEquilibriumCache(16, recorder)
	if err != nil {
		t.Fatal(err)
	}

	m := matrixgame.Matrix{
		{10, 12.5},
		{-12.5, -10},
	}
	companies := []string{"A", "B"}

	first := cache.SolveFocalEquilibria(m, companies)
	// Mutating a returned record must not leak into the cache.
	first.Equilibria[0].Row[0] = 42
	second := cache.SolveFocalEquilibria(m, companies)

	if recorder.hits != 1 || recorder.misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d hits and %d misses", recorder.hits, recorder.misses)
	}

	uncached := SolveFocalEquilibria(m, companies)
	if diff := cmp.Diff(uncached, second, approx); diff != "" {
		t.Errorf("cached record differs (-want +got):\n%s", diff)
	}

	if cache.Len() != 1 {
		t.Errorf("expected 1 cached game, got %d", cache.Len())
	}
}
