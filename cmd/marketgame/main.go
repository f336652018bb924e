// Command marketgame analyzes month-to-month market share competition in
// trading areas.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/timpalpant/marketgame/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string
	root := &cobra.Command{
		Use:          "marketgame",
		Short:        "Game-theoretic analysis of market share transitions",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Mark glog's flags as parsed; cobra has already set them.
			flag.CommandLine.Parse(nil)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		newAnalyzeCmd(&configPath),
		newSummarizeCmd(),
		newServeCmd(&configPath),
	)

	err := root.ExecuteContext(ctx)
	glog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the defaults if path is empty, and applies
// environment overrides. The result is validated by the caller after
// command-line overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}
