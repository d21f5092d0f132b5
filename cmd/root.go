package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sharp-sim/sharp-sim/sim/scenario"
	"github.com/sharp-sim/sharp-sim/sim/trace"
	"github.com/sharp-sim/sharp-sim/sim/workload"
)

var (
	logLevel string // Log verbosity level

	// run flags
	configPath  string  // Scenario YAML
	seed        int64   // Overrides the scenario seed when set
	horizon     float64 // Overrides the scenario horizon when set (simulated seconds)
	traceLevel  string  // Overrides the scenario trace level when set
	outputPath  string  // JSON result file
	traceOutput string  // Chrome trace-event file
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "sharp-sim",
	Short: "Discrete-event simulator for SHARP-enabled fat-tree job scheduling",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runOptions are the resolved flags of the run subcommand.
type runOptions struct {
	ConfigPath  string
	Seed        *int64
	Horizon     *float64
	TraceLevel  *string
	OutputPath  string
	TraceOutput string
}

// runCmd simulates one scenario
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scenario",
	Run: func(cmd *cobra.Command, args []string) {
		opts := runOptions{
			ConfigPath:  configPath,
			OutputPath:  outputPath,
			TraceOutput: traceOutput,
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = &seed
		}
		if cmd.Flags().Changed("horizon") {
			opts.Horizon = &horizon
		}
		if cmd.Flags().Changed("trace") {
			opts.TraceLevel = &traceLevel
		}
		if err := runScenario(opts, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// loadScenario reads the scenario and applies CLI overrides.
func loadScenario(opts runOptions) (*scenario.Scenario, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	s, err := scenario.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Seed != nil {
		s.Seed = opts.Seed
	}
	if opts.Horizon != nil {
		s.Horizon = opts.Horizon
	}
	if opts.TraceLevel != nil {
		s.TraceLevel = *opts.TraceLevel
	}
	if opts.TraceOutput != "" && s.TraceLevel == "" {
		s.TraceLevel = string(trace.TraceLevelJobs)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", opts.ConfigPath, err)
	}
	return s, nil
}

func runScenario(opts runOptions, w io.Writer) error {
	s, err := loadScenario(opts)
	if err != nil {
		return err
	}
	in, err := s.Build(workload.NewModelCache())
	if err != nil {
		return err
	}
	logrus.Infof("Starting simulation %q: %d hosts, seed %d, horizon %g",
		s.Name, in.Topology.HostCount(), s.SeedOrDefault(), s.HorizonOrDefault())

	result := in.Run()
	result.Print(w)
	if in.Recorder != nil {
		summary := trace.Summarize(in.Recorder)
		fmt.Fprintf(w, "Trace: %d events, %d SHARP / %d non-SHARP transmissions, %d waits\n",
			summary.TotalEvents, summary.SharpTransmissions, summary.NonSharpTransmissions, summary.Waits)
	}

	if opts.OutputPath != "" {
		if err := writeJSON(opts.OutputPath, result); err != nil {
			return err
		}
	}
	if opts.TraceOutput != "" {
		f, err := os.Create(opts.TraceOutput)
		if err != nil {
			return fmt.Errorf("creating trace output: %w", err)
		}
		defer f.Close()
		if err := in.Recorder.WriteJSON(f); err != nil {
			return fmt.Errorf("writing trace output: %w", err)
		}
	}
	logrus.Info("Simulation complete.")
	return nil
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&configPath, "config", "", "Scenario YAML file")
	runCmd.Flags().Int64Var(&seed, "seed", scenario.DefaultSeed, "Seed overriding the scenario's")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon in seconds, overriding the scenario's")
	runCmd.Flags().StringVar(&traceLevel, "trace", "", "Trace level (none, jobs, transmissions), overriding the scenario's")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Write the result as JSON to this file")
	runCmd.Flags().StringVar(&traceOutput, "trace-output", "", "Write recorded spans as Chrome trace events to this file")

	rootCmd.AddCommand(runCmd)
}
