package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
)

const testCSV = ` Trading_Area ,Month,Company,MS,units
X,2025-01,A,50,1
X,2025-01,B,50,2
X,2025-02,A,60,3
X,2025-02,B,not-a-number,4
Y,2025-02,C,-5,5
`

func TestReadCSV(t *testing.T) {
	observations, err := ReadCSV(strings.NewReader(testCSV), "ms")
	if err != nil {
		t.Fatal(err)
	}

	expected := []marketgame.Observation{
		{Area: "X", Month: "2025-01", Company: "A", Value: 50},
		{Area: "X", Month: "2025-01", Company: "B", Value: 50},
		{Area: "X", Month: "2025-02", Company: "A", Value: 60},
		{Area: "X", Month: "2025-02", Company: "B", Value: 0},
		{Area: "Y", Month: "2025-02", Company: "C", Value: 0},
	}
	if diff := cmp.Diff(expected, observations); diff != "" {
		t.Errorf("observations (-want +got):\n%s", diff)
	}
}

func TestReadCSV_ValueColumn(t *testing.T) {
	observations, err := ReadCSV(strings.NewReader(testCSV), " Units")
	if err != nil {
		t.Fatal(err)
	}

	if len(observations) != 5 || observations[4].Value != 5 {
		t.Errorf("expected values from the units column, got %+v", observations)
	}
}

func TestReadCSV_AreaFallback(t *testing.T) {
	data := "tradingarea,month,company,ms\nZ,2025-01,A,1\n"
	observations, err := ReadCSV(strings.NewReader(data), "ms")
	if err != nil {
		t.Fatal(err)
	}
	if observations[0].Area != "Z" {
		t.Errorf("expected area Z, got %q", observations[0].Area)
	}

	data = "month,company,ms\n2025-01,A,1\n"
	observations, err = ReadCSV(strings.NewReader(data), "ms")
	if err != nil {
		t.Fatal(err)
	}
	if observations[0].Area != "" {
		t.Errorf("expected empty area, got %q", observations[0].Area)
	}
}

func TestReadCSV_MissingColumns(t *testing.T) {
	for _, data := range []string{
		"",
		"trading_area,month,company\nX,2025-01,A\n",
		"trading_area,company,ms\nX,A,1\n",
		"trading_area,month,ms\nX,2025-01,1\n",
	} {
		if _, err := ReadCSV(strings.NewReader(data), "ms"); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestCSVSource_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.csv.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := pgzip.NewWriter(f)
	if _, err := w.Write([]byte(testCSV)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := Open(context.Background(), config.Source{
		Type:        config.CSVSource,
		Path:        path,
		ValueColumn: "ms",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	observations, err := src.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(observations) != 5 {
		t.Errorf("expected 5 observations, got %d", len(observations))
	}
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), config.Source{Type: "parquet"})
	if errors.Cause(err) != ErrUnknownSource {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}
