package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/uploadprobe/packages/stress"
	"github.com/spf13/cobra"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Repeat the smoke test and report latency percentiles",
	Long: `Run the smoke test repeatedly, one run at a time, and summarize the
outcome. Every run creates and removes its own placeholder files.

Examples:
  # Ten runs, one per second
  uploadprobe stress --iterations 10 --rate 1

  # As many runs as fit in a minute
  uploadprobe stress --duration 1m --rate 0

  # With thresholds for CI/CD
  uploadprobe stress -i 50 -r 5 --threshold "p95<500ms,errors<1%"`,
	Args: cobra.NoArgs,
	RunE: stressCommand,
}

var (
	stressIterationsFlag int
	stressDurationFlag   string
	stressRateFlag       float64
	stressThresholdFlag  string
	stressNoProgressFlag bool
)

func init() {
	addRunFlags(stressCmd)
	stressCmd.Flags().IntVarP(&stressIterationsFlag, "iterations", "i", 10, "Number of runs (0 = until --duration)")
	stressCmd.Flags().StringVarP(&stressDurationFlag, "duration", "d", "0", "Stop after this long (e.g., 30s, 5m); 0 = until --iterations")
	stressCmd.Flags().Float64VarP(&stressRateFlag, "rate", "r", 1, "Runs started per second (0 = back to back)")
	stressCmd.Flags().StringVar(&stressThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g., \"p95<500ms,errors<1%\")")
	stressCmd.Flags().BoolVar(&stressNoProgressFlag, "no-progress", false, "Do not print a line per run")

	rootCmd.AddCommand(stressCmd)
}

func stressCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRunConfig(cmd)
	if err != nil {
		return configError(err)
	}

	duration, err := time.ParseDuration(stressDurationFlag)
	if err != nil {
		return configError(fmt.Errorf("invalid duration %q: %w", stressDurationFlag, err))
	}

	thresholds, err := stress.ParseThresholds(stressThresholdFlag)
	if err != nil {
		return configError(fmt.Errorf("invalid threshold: %w", err))
	}

	stressCfg := &stress.Config{
		Iterations: stressIterationsFlag,
		Duration:   duration,
		Rate:       stressRateFlag,
		Thresholds: thresholds,
	}
	if err := stressCfg.Validate(); err != nil {
		return configError(err)
	}

	outWriter, closeOut, err := openOutput(cmd)
	if err != nil {
		return configError(err)
	}
	defer closeOut()

	jsonOutput := strings.EqualFold(cfg.Output, "json")
	reporter := stress.NewReporter(
		stress.WithWriter(outWriter),
		stress.WithNoColor(cfg.GetNoColor()),
		stress.WithVerbose(cfg.GetVerbose()),
		stress.WithNoProgress(stressNoProgressFlag || jsonOutput),
	)

	probe := runner.NewRunner(runner.FromConfig(cfg), runner.WithLogger(logger))
	if !jsonOutput {
		reporter.Header(version, probe.UploadURL(), stressCfg)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := stress.NewRunner(stressCfg, probe, stress.WithReporter(reporter)).Run(ctx)
	if err != nil {
		return configError(err)
	}

	if jsonOutput {
		if err := reporter.JSONSummary(result.Summary, result.Thresholds); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	} else {
		reporter.Summary(result.Summary, result.Thresholds)
	}

	if !result.Passed {
		return reported(fmt.Errorf("stress session failed (%d of %d runs failed)", result.Summary.Failed, result.Summary.Runs))
	}
	return nil
}
