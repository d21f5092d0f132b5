package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/experiment"
)

var (
	sweepConfigPath string
	sweepOutputPath string
	workers         int
	sweepGrid       experiment.Sweep
)

// sweepReport is the JSON document written by --output.
type sweepReport struct {
	Summaries []experiment.Summary `json:"summaries"`
	Runs      []sweepRun           `json:"runs"`
}

type sweepRun struct {
	Name   string      `json:"name"`
	Seed   int64       `json:"seed"`
	Error  string      `json:"error,omitempty"`
	Result *sim.Result `json:"result,omitempty"`
}

// sweepCmd runs a grid of variations of one scenario in parallel
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a scenario over a grid of seeds, traces and policies",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSweep(context.Background(), sweepConfigPath, sweepGrid, workers, sweepOutputPath, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func runSweep(ctx context.Context, path string, grid experiment.Sweep, workers int, output string, w io.Writer) error {
	base, err := loadScenario(runOptions{ConfigPath: path})
	if err != nil {
		return err
	}
	if err := grid.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	points := grid.Expand(base)
	outcomes, err := experiment.RunAll(ctx, points, workers)
	if err != nil {
		return err
	}
	for _, e := range experiment.Errors(outcomes) {
		logrus.Warnf("%v", e)
	}

	summaries := experiment.Summarize(outcomes)
	experiment.PrintSummaries(w, summaries)

	if output != "" {
		report := sweepReport{Summaries: summaries, Runs: make([]sweepRun, len(outcomes))}
		for i, o := range outcomes {
			report.Runs[i] = sweepRun{Name: o.Name, Seed: o.Seed, Result: o.Result}
			if o.Err != nil {
				report.Runs[i].Error = o.Err.Error()
			}
		}
		if err := writeJSON(output, report); err != nil {
			return err
		}
	}
	if n := len(experiment.Errors(outcomes)); n > 0 {
		return fmt.Errorf("%d of %d runs failed", n, len(outcomes))
	}
	return nil
}

func init() {
	sweepCmd.Flags().StringVar(&sweepConfigPath, "config", "", "Base scenario YAML file")
	sweepCmd.Flags().StringVar(&sweepOutputPath, "output", "", "Write summaries and per-run results as JSON to this file")
	sweepCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Maximum number of concurrent runs")
	sweepCmd.Flags().Int64SliceVar(&sweepGrid.Seeds, "seeds", nil, "Comma-separated seeds")
	sweepCmd.Flags().IntSliceVar(&sweepGrid.HostCountTraces, "host-count-traces", nil, "Comma-separated built-in host count trace indices")
	sweepCmd.Flags().StringSliceVar(&sweepGrid.HostAllocation, "host-policies", nil, "Comma-separated host allocation policies (first, random, smart)")
	sweepCmd.Flags().StringSliceVar(&sweepGrid.TreeBuilding, "tree-policies", nil, "Comma-separated tree building policies (none, first, random, smart)")
	sweepCmd.Flags().StringSliceVar(&sweepGrid.Oracles, "oracles", nil, "Comma-separated independent-set oracles (greedy, min-degree, exact)")
	sweepCmd.Flags().StringSliceVar(&sweepGrid.Sharing, "sharing-policies", nil, "Comma-separated sharing policies (greedy, non-sharp, smart)")

	rootCmd.AddCommand(sweepCmd)
}
