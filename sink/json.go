package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
)

// JSONFile writes the indented report to a file, gzipped if the path ends
// in ".gz".
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (s *JSONFile) Write(ctx context.Context, report *marketgame.Report) error {
	f, err := os.Create(s.path)
	if err != nil {
		return errors.Wrapf(err, "create %s", s.path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gzw *pgzip.Writer
	if strings.HasSuffix(s.path, ".gz") {
		gzw = pgzip.NewWriter(bw)
		w = gzw
	}

	if err := WriteJSON(w, report); err != nil {
		return errors.Wrapf(err, "write %s", s.path)
	}

	if gzw != nil {
		if err := gzw.Close(); err != nil {
			return errors.Wrapf(err, "write %s", s.path)
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "write %s", s.path)
	}

	glog.Infof("Wrote report for %d areas to %s", len(report.Areas), s.path)
	return f.Close()
}

func (s *JSONFile) Close() error {
	return nil
}

// WriteJSON writes the report with two-space indentation.
func WriteJSON(w io.Writer, report *marketgame.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
