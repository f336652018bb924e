package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/timpalpant/marketgame"
)

func newSummarizeCmd() *cobra.Command {
	var filter marketgame.SummaryFilter
	cmd := &cobra.Command{
		Use:   "summarize <report.json>",
		Short: "Rank companies in a report by mean self payoff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := readReportFile(args[0])
			if err != nil {
				return err
			}

			summaries := marketgame.Summarize(report.Areas, filter)
			return printSummaries(cmd.OutOrStdout(), summaries)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Area, "area", "", "Only include this trading area")
	flags.StringVar(&filter.Month, "month", "", "Only include transitions into this month")
	flags.StringVar(&filter.Company, "company", "", "Only include this company")
	return cmd
}

func readReportFile(path string) (*marketgame.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gzr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer gzr.Close()
		r = gzr
	}

	return marketgame.ReadReport(r)
}

func printSummaries(w io.Writer, summaries []marketgame.CompanySummary) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "COMPANY\tTRANSITIONS\tSELF PAYOFF\tFICTITIOUS\tREPLICATOR\tEQUILIBRIA\t")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t\n",
			s.Company, s.Transitions,
			formatMean(s.MeanSelfPayoff, 2), formatMean(s.MeanFictitious, 3), formatMean(s.MeanReplicator, 3),
			s.EquilibriumCount)
	}

	return tw.Flush()
}

func formatMean(v float64, precision int) string {
	if math.IsNaN(v) {
		return "-"
	}

	return fmt.Sprintf("%.*f", precision, v)
}
