package marketgame

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame/matrixgame"
)

// TransitionResult is the analysis of one area for the transition into
// Month. Every slice is indexed like Companies. Empty slices mean "no
// signal for this transition" and are not errors.
type TransitionResult struct {
	Month          string            `json:"month"`
	Companies      []string          `json:"companies"`
	ShareChange    []float64         `json:"share_change"`
	Moves          []Move            `json:"moves"`
	PayoffMatrix   matrixgame.Matrix `json:"payoff_matrix"`
	FictitiousPlay []float64         `json:"fictitious_play"`
	Replicator     []float64         `json:"replicator"`
	Equilibria     EquilibriumRecord `json:"equilibria"`
}

// AreaResult is the time series of transitions of one trading area.
type AreaResult struct {
	Months   []string           `json:"months"`
	PerMonth []TransitionResult `json:"per_month"`
}

// Results maps each trading area to its analysis.
type Results map[string]*AreaResult

// Report is the canonical serialized form of one analysis run.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	ValueColumn string    `json:"value_column,omitempty"`
	Params      Params    `json:"params"`
	Areas       Results   `json:"areas"`
}

func NewReport(results Results, params Params, valueColumn string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		ValueColumn: valueColumn,
		Params:      params,
		Areas:       results,
	}
}

// NumTransitions returns the number of transitions across all areas.
func (r *Report) NumTransitions() int {
	total := 0
	for _, area := range r.Areas {
		if area != nil {
			total += len(area.PerMonth)
		}
	}

	return total
}

func ReadReport(r io.Reader) (*Report, error) {
	var report Report
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}

	if report.Areas == nil {
		report.Areas = Results{}
	}

	return &report, nil
}
