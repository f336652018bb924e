package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/timpalpant/marketgame"
	"github.com/timpalpant/marketgame/config"
	"github.com/timpalpant/marketgame/metrics"
	"github.com/timpalpant/marketgame/sink"
	"github.com/timpalpant/marketgame/source"
)

type analyzeFlags struct {
	valueColumn     string
	output          string
	npz             string
	workers         int
	steps           int
	dt              float64
	influence       float64
	cap             float64
	metricsTextfile string
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [input.csv]",
		Short: "Analyze every trading area and write the report",
		Long: "Analyze every trading area and write the report. Without an input file the\n" +
			"configured source is used. Without configured sinks the report is written\n" +
			"to stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				cfg.Source.Type = config.CSVSource
				cfg.Source.Path = args[0]
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runAnalyze(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.valueColumn, "value-column", source.DefaultValueColumn, "Column holding the volume values")
	flags.StringVar(&f.output, "output", "", "Write the JSON report to this file (.gz to compress)")
	flags.StringVar(&f.npz, "npz", "", "Write payoff matrices to this .npz archive")
	flags.IntVar(&f.workers, "workers", 0, "Number of areas to analyze concurrently (0 = one per CPU)")
	flags.IntVar(&f.steps, "steps", 200, "Iterations of fictitious play and replicator dynamics")
	flags.Float64Var(&f.dt, "dt", 0.01, "Replicator dynamics time step")
	flags.Float64Var(&f.influence, "influence", marketgame.DefaultInfluence, "Weight of the opponent's share change in off-diagonal payoffs")
	flags.Float64Var(&f.cap, "cap", marketgame.DefaultCap, "Payoffs are clamped to [-cap, cap]")
	flags.StringVar(&f.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (f *analyzeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("value-column") {
		cfg.Source.ValueColumn = f.valueColumn
	}
	if flags.Changed("output") {
		cfg.Sinks.JSON.Path = f.output
	}
	if flags.Changed("npz") {
		cfg.Sinks.NPZ.Path = f.npz
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = f.workers
	}
	if flags.Changed("steps") {
		cfg.Analysis.Steps = f.steps
	}
	if flags.Changed("dt") {
		cfg.Analysis.TimeStep = f.dt
	}
	if flags.Changed("influence") {
		cfg.Analysis.Influence = f.influence
	}
	if flags.Changed("cap") {
		cfg.Analysis.Cap = f.cap
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = f.metricsTextfile
	}
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	observations, err := src.Load(ctx)
	if err != nil {
		return err
	}

	agg, err := marketgame.NewAggregates(observations)
	if err != nil {
		return err
	}

	params := cfg.Analysis.Params()
	analyzer, err := marketgame.NewAnalyzer(params, recorder)
	if err != nil {
		return err
	}

	start := time.Now()
	report := marketgame.NewReport(analyzer.AnalyzeAll(agg), params, cfg.Source.ValueColumn)
	glog.Infof("Run %s: analyzed %d transitions in %d areas (took: %v)",
		report.RunID, report.NumTransitions(), len(report.Areas), time.Since(start))

	sinks, err := sink.Open(ctx, cfg.Sinks)
	if err != nil {
		return err
	}

	if err := publish(ctx, sinks, report, os.Stdout); err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
			return err
		}
	}

	return nil
}

// publish writes the report to every sink, or to stdout if there are none,
// and closes the sinks.
func publish(ctx context.Context, sinks sink.Multi, report *marketgame.Report, stdout io.Writer) (err error) {
	defer func() {
		if cerr := sinks.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close sinks")
		}
	}()

	if len(sinks) == 0 {
		return errors.Wrap(sink.WriteJSON(stdout, report), "write report")
	}

	return sinks.Write(ctx, report)
}
