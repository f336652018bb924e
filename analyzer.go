package marketgame

import (
	"runtime"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame/matrixgame"
)

// Solver names, as used in logs and metrics.
const (
	FictitiousPlaySolver = "fictitious_play"
	ReplicatorSolver     = "replicator"
	EquilibriumSolver    = "equilibria"
)

// Params configures an Analyzer.
type Params struct {
	Payoff PayoffParams `json:"payoff"`
	// Iteration budget for fictitious play and replicator dynamics.
	Steps int `json:"steps"`
	// Euler step of the replicator dynamics.
	TimeStep float64 `json:"dt"`
	// Maximum number of areas analyzed concurrently.
	Workers int `json:"workers"`
	// Number of solved 2x2 games to memoize. Zero disables the cache.
	CacheSize int `json:"equilibrium_cache_size"`
}

func DefaultParams() Params {
	return Params{
		Payoff:    DefaultPayoffParams(),
		Steps:     matrixgame.DefaultSteps,
		TimeStep:  matrixgame.DefaultTimeStep,
		Workers:   runtime.NumCPU(),
		CacheSize: 1024,
	}
}

func (p Params) Validate() error {
	if err := p.Payoff.Validate(); err != nil {
		return err
	}

	if p.Steps < 0 {
		return errors.Errorf("steps must be non-negative, got %d", p.Steps)
	}

	if !(p.TimeStep > 0) {
		return errors.Errorf("dt must be positive, got %v", p.TimeStep)
	}

	if p.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", p.Workers)
	}

	if p.CacheSize < 0 {
		return errors.Errorf("equilibrium cache size must be non-negative, got %d", p.CacheSize)
	}

	return nil
}

// Recorder receives analysis metrics. See package metrics for the
// Prometheus implementation.
type Recorder interface {
	RecordTransition(area string)
	RecordSolverFailure(solver string)
	RecordSolverLatency(solver string, seconds float64)
	RecordCacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string) {}

func (nopRecorder) RecordSolverFailure(string) {}

func (nopRecorder) RecordSolverLatency(string, float64) {}

func (nopRecorder) RecordCacheLookup(bool) {}

// Solution holds the three solver outputs for one payoff matrix.
type Solution struct {
	FictitiousPlay []float64         `json:"fictitious_play"`
	Replicator     []float64         `json:"replicator"`
	Equilibria     EquilibriumRecord `json:"equilibria"`
}

// Analyzer runs the payoff construction and the three solvers over every
// area and month transition.
type Analyzer struct {
	params     Params
	recorder   Recorder
	equilibria *EquilibriumCache
}

// NewAnalyzer validates params. recorder may be nil.
func NewAnalyzer(params Params, recorder Recorder) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid analysis parameters")
	}

	if recorder == nil {
		recorder = nopRecorder{}
	}

	a := &Analyzer{
		params:   params,
		recorder: recorder,
	}

	if params.CacheSize > 0 {
		cache, err := NewEquilibriumCache(params.CacheSize, recorder)
		if err != nil {
			return nil, errors.Wrap(err, "create equilibrium cache")
		}
		a.equilibria = cache
	}

	return a, nil
}

func (a *Analyzer) Params() Params {
	return a.params
}

// AnalyzeAll analyzes every area of agg. Areas are processed concurrently,
// each transition independently; a failing solver only blanks its own
// output for that transition.
func (a *Analyzer) AnalyzeAll(agg *Aggregates) Results {
	areas := agg.Areas()
	glog.Infof("Analyzing %d trading areas with %d workers", len(areas), a.params.Workers)

	results := make(Results, len(areas))
	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, a.params.Workers)
	start := time.Now()
	for _, area := range areas {
		sem <- struct{}{}
		wg.Add(1)
		go func(area string) {
			defer func() { <-sem }()
			defer wg.Done()

			areaResult := a.AnalyzeArea(agg, area)
			mu.Lock()
			results[area] = areaResult
			mu.Unlock()
		}(area)
	}

	wg.Wait()
	glog.Infof("Finished analyzing %d areas (took: %v)", len(areas), time.Since(start))
	return results
}

// AnalyzeArea analyzes every month transition of one area in
// chronological order.
func (a *Analyzer) AnalyzeArea(agg *Aggregates, area string) *AreaResult {
	months := agg.Months(area)
	result := &AreaResult{
		Months:   months,
		PerMonth: make([]TransitionResult, 0, len(months)),
	}

	glog.V(1).Infof("Analyzing area %q: %d months, %d companies",
		area, len(months), len(agg.Companies(area)))
	for i := range months {
		result.PerMonth = append(result.PerMonth, a.AnalyzeTransition(agg, area, i, months))
	}

	return result
}

// AnalyzeTransition builds the payoff matrix for the transition into
// months[monthIndex] and solves it.
func (a *Analyzer) AnalyzeTransition(agg *Aggregates, area string, monthIndex int, months []string) TransitionResult {
	t := BuildTransition(agg, area, monthIndex, months, a.params.Payoff)
	label := area + "/" + months[monthIndex]
	sol := a.solve(t.Payoff, t.Companies, label)
	a.recorder.RecordTransition(area)

	return TransitionResult{
		Month:          months[monthIndex],
		Companies:      t.Companies,
		ShareChange:    t.ShareChange,
		Moves:          t.Moves,
		PayoffMatrix:   t.Payoff,
		FictitiousPlay: sol.FictitiousPlay,
		Replicator:     sol.Replicator,
		Equilibria:     sol.Equilibria,
	}
}

// Solve runs the three solvers over a caller-supplied payoff matrix
// indexed by companies.
func (a *Analyzer) Solve(m matrixgame.Matrix, companies []string) (Solution, error) {
	if len(m) != len(companies) || !m.IsSquare() {
		return Solution{}, errors.Errorf("payoff matrix with %d rows does not match %d companies",
			len(m), len(companies))
	}

	return a.solve(m, companies, "request"), nil
}

func (a *Analyzer) solve(m matrixgame.Matrix, companies []string, label string) Solution {
	sol := Solution{
		FictitiousPlay: []float64{},
		Replicator:     []float64{},
		Equilibria:     emptyEquilibriumRecord(),
	}

	if len(m) == 0 {
		return sol
	}

	a.guard(FictitiousPlaySolver, label, func() {
		sol.FictitiousPlay = matrixgame.FictitiousPlay(m, a.params.Steps)
	})

	a.guard(ReplicatorSolver, label, func() {
		sol.Replicator = matrixgame.ReplicatorDynamics(m, a.params.Steps, a.params.TimeStep)
	})

	ok := a.guard(EquilibriumSolver, label, func() {
		if a.equilibria != nil {
			sol.Equilibria = a.equilibria.SolveFocalEquilibria(m, companies)
		} else {
			sol.Equilibria = SolveFocalEquilibria(m, companies)
		}
	})
	if !ok {
		sol.Equilibria = emptyEquilibriumRecord()
		sol.Equilibria.Error = "equilibrium solver failed"
	}

	return sol
}

// guard runs one solver, converting a panic into a logged and counted
// failure so the remaining solvers and transitions still run.
func (a *Analyzer) guard(solver, label string, fn func()) (ok bool) {
	start := time.Now()
	defer func() {
		a.recorder.RecordSolverLatency(solver, time.Since(start).Seconds())
		if r := recover(); r != nil {
			glog.Warningf("%s solver failed for %s: %v", solver, label, r)
			a.recorder.RecordSolverFailure(solver)
			ok = false
		}
	}()

	fn()
	return true
}
