package source

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
)

const DefaultValueColumn = "ms"

// Accepted names of the area column, in order of preference.
var areaColumns = []string{"trading_area", "tradingarea"}

// CSVSource reads observations from a CSV file. Files ending in ".gz" are
// decompressed.
type CSVSource struct {
	path        string
	valueColumn string
}

func NewCSVSource(path, valueColumn string) *CSVSource {
	if valueColumn == "" {
		valueColumn = DefaultValueColumn
	}

	return &CSVSource{
		path:        path,
		valueColumn: valueColumn,
	}
}

func (s *CSVSource) Load(ctx context.Context) ([]marketgame.Observation, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(s.path, ".gz") {
		gzr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", s.path)
		}
		defer gzr.Close()
		r = gzr
	}

	glog.Infof("Loading observations from %s", s.path)
	observations, err := ReadCSV(r, s.valueColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}

	glog.Infof("Loaded %d observations", len(observations))
	return observations, ctx.Err()
}

func (s *CSVSource) Close() error {
	return nil
}

// ReadCSV parses observations from r. The header is matched case- and
// whitespace-insensitively. Values that cannot be parsed or are not finite count as 0, and
// negative values are clamped to 0. Missing area columns yield an empty
// area name.
func ReadCSV(r io.Reader, valueColumn string) ([]marketgame.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("missing header row")
	} else if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}

	valueColumn = strings.ToLower(strings.TrimSpace(valueColumn))
	valueIdx, ok := columns[valueColumn]
	if !ok {
		return nil, errors.Errorf("missing value column %q", valueColumn)
	}
	monthIdx, ok := columns["month"]
	if !ok {
		return nil, errors.New("missing month column")
	}
	companyIdx, ok := columns["company"]
	if !ok {
		return nil, errors.New("missing company column")
	}
	areaIdx := -1
	for _, name := range areaColumns {
		if idx, ok := columns[name]; ok {
			areaIdx = idx
			break
		}
	}

	var observations []marketgame.Observation
	field := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		value, err := strconv.ParseFloat(field(record, valueIdx), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			glog.V(2).Infof("Line %d: unparseable value %q, using 0", line, field(record, valueIdx))
			value = 0
		} else if value < 0 {
			glog.Warningf("Line %d: negative value %v, using 0", line, value)
			value = 0
		}

		observations = append(observations, marketgame.Observation{
			Area:    field(record, areaIdx),
			Month:   field(record, monthIdx),
			Company: field(record, companyIdx),
			Value:   value,
		})
	}

	return observations, nil
}
