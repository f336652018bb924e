package marketgame

import (
	"math"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestNewAggregates(t *testing.T) {
	agg := mustAggregates(t, []Observation{
		{Area: "Y", Month: "2025-02", Company: "B", Value: 3},
		{Area: "X", Month: "2025-02", Company: "B", Value: 5},
		{Area: "X", Month: "2025-01", Company: "A", Value: 1},
		{Area: "X", Month: "2025-01", Company: "A", Value: 2},
		{Area: "X", Month: "2025-02", Company: "C", Value: 5},
	})

	if !reflect.DeepEqual(agg.Areas(), []string{"X", "Y"}) {
		t.Errorf("unexpected areas: %v", agg.Areas())
	}
	if !reflect.DeepEqual(agg.Months("X"), []string{"2025-01", "2025-02"}) {
		t.Errorf("unexpected months: %v", agg.Months("X"))
	}
	if !reflect.DeepEqual(agg.Companies("X"), []string{"A", "B", "C"}) {
		t.Errorf("unexpected companies: %v", agg.Companies("X"))
	}

	if v := agg.Volume("X", "2025-01", "A"); v != 3 {
		t.Errorf("expected duplicate observations to be summed to 3, got %v", v)
	}
	if v := agg.Volume("X", "2025-01", "B"); v != 0 {
		t.Errorf("expected missing volume to be 0, got %v", v)
	}
	if total := agg.Total("X", "2025-02"); total != 10 {
		t.Errorf("expected total 10, got %v", total)
	}

	shares := agg.Shares("X", "2025-02", agg.Companies("X"))
	if !reflect.DeepEqual(shares, []float64{0, 0.5, 0.5}) {
		t.Errorf("unexpected shares: %v", shares)
	}
}

func TestAggregates_AccessorsReturnCopies(t *testing.T) {
	agg := mustAggregates(t, []Observation{
		{Area: "X", Month: "2025-01", Company: "A", Value: 1},
	})

	agg.Areas()[0] = "mutated"
	agg.Companies("X")[0] = "mutated"
	if agg.Areas()[0] != "X" || agg.Companies("X")[0] != "A" {
		t.Error("accessor results alias internal state")
	}

	if m := agg.Months("nowhere"); m == nil || len(m) != 0 {
		t.Errorf("expected empty non-nil months, got %v", m)
	}
}

func TestAggregates_EmptyMonthShares(t *testing.T) {
	agg := mustAggregates(t, []Observation{
		{Area: "X", Month: "2025-01", Company: "A", Value: 0},
	})

	shares := agg.Shares("X", "2025-01", []string{"A"})
	if shares[0] != 0 {
		t.Errorf("expected zero share for an empty month, got %v", shares[0])
	}
}

func TestNewAggregates_RejectsInvalidVolumes(t *testing.T) {
	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := NewAggregates([]Observation{
			{Area: "X", Month: "2025-01", Company: "A", Value: v},
		})
		if errors.Cause(err) != ErrInvalidVolume {
			t.Errorf("value %v: expected ErrInvalidVolume, got %v", v, err)
		}
	}
}
