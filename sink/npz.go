package sink

import (
	"context"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/npyio"
)

// NPZ writes every non-empty payoff matrix of the report to one .npz
// archive, named "<area>__<month>".
type NPZ struct {
	path string
}

func NewNPZ(path string) *NPZ {
	return &NPZ{path: path}
}

func (s *NPZ) Write(ctx context.Context, report *marketgame.Report) error {
	arrays := payoffArrays(report.Areas)
	if err := npyio.MakeNPZ(arrays, s.path); err != nil {
		return errors.Wrapf(err, "write %s", s.path)
	}

	glog.Infof("Wrote %d payoff matrices to %s", len(arrays), s.path)
	return nil
}

func (s *NPZ) Close() error {
	return nil
}

func payoffArrays(results marketgame.Results) []npyio.Array {
	areas := make([]string, 0, len(results))
	for area := range results {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	var arrays []npyio.Array
	for _, area := range areas {
		for _, t := range results[area].PerMonth {
			if len(t.PayoffMatrix) == 0 {
				continue
			}

			arrays = append(arrays, npyio.Array{
				Name: area + "__" + t.Month,
				Data: t.PayoffMatrix,
			})
		}
	}

	return arrays
}
