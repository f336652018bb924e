package marketgame

import (
	"math"
	"sort"
)

// SummaryFilter restricts Summarize to matching transitions. Empty fields
// match everything.
type SummaryFilter struct {
	Area    string
	Month   string
	Company string
}

// CompanySummary aggregates one company's results across transitions.
// Means are NaN when no transition contributed a value.
type CompanySummary struct {
	Company          string
	Transitions      int
	MeanSelfPayoff   float64
	MeanFictitious   float64
	MeanReplicator   float64
	EquilibriumCount int
}

type runningMean struct {
	sum float64
	n   int
}

func (m *runningMean) add(v float64) {
	m.sum += v
	m.n++
}

func (m runningMean) value() float64 {
	if m.n == 0 {
		return math.NaN()
	}

	return m.sum / float64(m.n)
}

type companyTotals struct {
	transitions int
	self        runningMean
	fictitious  runningMean
	replicator  runningMean
	equilibria  int
}

// Summarize ranks companies by their mean self payoff (the diagonal of the
// payoff matrix), highest first, with NaN means last. Solver weights only
// count when the solver output is aligned with the company list.
func Summarize(results Results, filter SummaryFilter) []CompanySummary {
	totals := make(map[string]*companyTotals)
	for area, areaResult := range results {
		if areaResult == nil || (filter.Area != "" && filter.Area != area) {
			continue
		}

		for _, t := range areaResult.PerMonth {
			if filter.Month != "" && filter.Month != t.Month {
				continue
			}

			for i, company := range t.Companies {
				if filter.Company != "" && filter.Company != company {
					continue
				}

				ct, ok := totals[company]
				if !ok {
					ct = &companyTotals{}
					totals[company] = ct
				}

				ct.transitions++
				if len(t.PayoffMatrix) == len(t.Companies) && len(t.PayoffMatrix[i]) > i {
					ct.self.add(t.PayoffMatrix[i][i])
				}
				if len(t.FictitiousPlay) == len(t.Companies) {
					ct.fictitious.add(t.FictitiousPlay[i])
				}
				if len(t.Replicator) == len(t.Companies) {
					ct.replicator.add(t.Replicator[i])
				}
				if t.Equilibria.Available() && t.Equilibria.HasPlayer(company) {
					ct.equilibria++
				}
			}
		}
	}

	result := make([]CompanySummary, 0, len(totals))
	for company, ct := range totals {
		result = append(result, CompanySummary{
			Company:          company,
			Transitions:      ct.transitions,
			MeanSelfPayoff:   ct.self.value(),
			MeanFictitious:   ct.fictitious.value(),
			MeanReplicator:   ct.replicator.value(),
			EquilibriumCount: ct.equilibria,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].MeanSelfPayoff, result[j].MeanSelfPayoff
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return result[i].Company < result[j].Company
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case a != b:
			return a > b
		}

		return result[i].Company < result[j].Company
	})

	return result
}
