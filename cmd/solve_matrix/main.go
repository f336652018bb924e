// Command solve_matrix runs the solvers on a payoff matrix read from a JSON
// file ([[...], ...]) and prints the solution as JSON.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/matrixgame"
)

func main() {
	input := flag.String("input", "", "JSON file holding the payoff matrix")
	companies := flag.String("companies", "", "Comma-separated company names, in matrix order")
	steps := flag.Int("steps", matrixgame.DefaultSteps, "Iterations of fictitious play and replicator dynamics")
	dt := flag.Float64("dt", matrixgame.DefaultTimeStep, "Replicator dynamics time step")
	flag.Parse()
	defer glog.Flush()

	f, err := os.Open(*input)
	if err != nil {
		glog.Fatal(err)
	}

	var m matrixgame.Matrix
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		glog.Fatalf("Unable to decode %s: %v", *input, err)
	}
	f.Close()

	names := strings.Split(*companies, ",")
	if *companies == "" {
		names = make([]string, len(m))
		for i := range names {
			names[i] = strconv.Itoa(i)
		}
	}

	params := marketgame.DefaultParams()
	params.Steps = *steps
	params.TimeStep = *dt
	params.CacheSize = 0
	analyzer, err := marketgame.NewAnalyzer(params, nil)
	if err != nil {
		glog.Fatal(err)
	}

	glog.Infof("Solving %dx%d payoff matrix", len(m), len(m))
	sol, err := analyzer.Solve(m, names)
	if err != nil {
		glog.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sol); err != nil {
		glog.Fatal(err)
	}
}
