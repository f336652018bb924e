package marketgame

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ErrInvalidVolume is returned for observations whose value is negative,
// NaN or infinite.
var ErrInvalidVolume = errors.New("volume must be finite and non-negative")

// Observation is the aggregated volume of one company in one trading area
// for one month ("YYYY-MM").
type Observation struct {
	Area    string  `json:"area" validate:"required"`
	Month   string  `json:"month" validate:"required"`
	Company string  `json:"company" validate:"required"`
	Value   float64 `json:"value" validate:"gte=0"`
}

type volumeKey struct {
	area, month, company string
}

type monthKey struct {
	area, month string
}

// Aggregates indexes observations by (area, month, company). It is
// immutable once built and safe for concurrent readers.
type Aggregates struct {
	areas     []string
	months    map[string][]string
	companies map[string][]string
	volumes   map[volumeKey]float64
	totals    map[monthKey]float64
}

// NewAggregates builds the index. Observations sharing a key are summed.
func NewAggregates(observations []Observation) (*Aggregates, error) {
	agg := &Aggregates{
		months:    make(map[string][]string),
		companies: make(map[string][]string),
		volumes:   make(map[volumeKey]float64, len(observations)),
		totals:    make(map[monthKey]float64),
	}

	seenMonths := make(map[monthKey]bool)
	seenCompanies := make(map[[2]string]bool)
	for _, obs := range observations {
		if obs.Value < 0 || math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
			return nil, errors.Wrapf(ErrInvalidVolume, "area %q, month %q, company %q: %v",
				obs.Area, obs.Month, obs.Company, obs.Value)
		}

		if _, ok := agg.months[obs.Area]; !ok {
			agg.areas = append(agg.areas, obs.Area)
			agg.months[obs.Area] = nil
		}

		mk := monthKey{obs.Area, obs.Month}
		if !seenMonths[mk] {
			seenMonths[mk] = true
			agg.months[obs.Area] = append(agg.months[obs.Area], obs.Month)
		}

		ck := [2]string{obs.Area, obs.Company}
		if !seenCompanies[ck] {
			seenCompanies[ck] = true
			agg.companies[obs.Area] = append(agg.companies[obs.Area], obs.Company)
		}

		agg.volumes[volumeKey{obs.Area, obs.Month, obs.Company}] += obs.Value
		agg.totals[mk] += obs.Value
	}

	sort.Strings(agg.areas)
	for area := range agg.months {
		sort.Strings(agg.months[area])
		sort.Strings(agg.companies[area])
	}

	return agg, nil
}

// Areas returns the trading areas in lexicographic order.
func (a *Aggregates) Areas() []string {
	return append([]string{}, a.areas...)
}

// Months returns the months observed in area in chronological order.
func (a *Aggregates) Months(area string) []string {
	return append([]string{}, a.months[area]...)
}

// Companies returns every company observed in area, in any month, sorted.
// This ordering indexes all matrices and vectors built for the area.
func (a *Aggregates) Companies(area string) []string {
	return append([]string{}, a.companies[area]...)
}

// Volume returns the aggregated volume, or 0 if nothing was observed.
func (a *Aggregates) Volume(area, month, company string) float64 {
	return a.volumes[volumeKey{area, month, company}]
}

// Total returns the summed volume of all companies in area for month.
func (a *Aggregates) Total(area, month string) float64 {
	return a.totals[monthKey{area, month}]
}

// Shares returns each company's fraction of the area's volume in month.
// The total is floored at a tiny epsilon so an empty month yields zeros.
func (a *Aggregates) Shares(area, month string, companies []string) []float64 {
	total := math.Max(a.Total(area, month), totalFloor)
	result := make([]float64, len(companies))
	for i, c := range companies {
		result[i] = a.Volume(area, month, c) / total
	}

	return result
}
