package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajharbinger/crm-pipeline/internal/services"
)

var (
	rescoreOnce          bool
	rescoreBatchSize     int
	rescoreInterval      int
	rescoreMaxConcurrent int
	rescoreNewOnly       bool
	rescoreOlderThanDays int
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute lead scores against the active rules",
	Long: `Recompute stored lead scores against the active scoring rules.

Without --once the pipeline runs a cycle immediately and then every
--interval minutes until interrupted. Unset flags fall back to the
rescore_* configuration.

Examples:
  crmctl rescore --once
  crmctl rescore --once --new-only
  crmctl rescore --interval 30 --older-than-days 7`,
	Args: cobra.NoArgs,
	RunE: runRescore,
}

func init() {
	f := rescoreCmd.Flags()
	f.BoolVar(&rescoreOnce, "once", false, "run a single cycle and exit")
	f.IntVar(&rescoreBatchSize, "batch-size", 0, "leads fetched per page")
	f.IntVar(&rescoreInterval, "interval", 0, "minutes between cycles")
	f.IntVar(&rescoreMaxConcurrent, "max-concurrent", 0, "concurrent score writes")
	f.BoolVar(&rescoreNewOnly, "new-only", false, "only score leads that were never scored")
	f.IntVar(&rescoreOlderThanDays, "older-than-days", 0, "skip leads scored within this many days")
}

// applyRescoreFlags overrides base with every flag set on the command line.
func applyRescoreFlags(flags *pflag.FlagSet, base services.PipelineConfig) services.PipelineConfig {
	if flags.Changed("batch-size") {
		base.BatchSize = rescoreBatchSize
	}
	if flags.Changed("interval") {
		base.IntervalMinutes = rescoreInterval
	}
	if flags.Changed("max-concurrent") {
		base.MaxConcurrent = rescoreMaxConcurrent
	}
	if flags.Changed("new-only") {
		base.ProcessNewOnly = rescoreNewOnly
	}
	if flags.Changed("older-than-days") {
		base.RescoreOlderThanDays = rescoreOlderThanDays
	}
	return base
}

func runRescore(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline := a.Services.Rescore
	pcfg := applyRescoreFlags(cmd.Flags(), pipeline.Config())
	if err := pcfg.Validate(); err != nil {
		return err
	}
	log.Info("Rescore configuration",
		"batch_size", pcfg.BatchSize,
		"interval_minutes", pcfg.IntervalMinutes,
		"max_concurrent", pcfg.MaxConcurrent,
		"process_new_only", pcfg.ProcessNewOnly,
		"rescore_older_than_days", pcfg.RescoreOlderThanDays)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rescoreOnce {
		stats, err := pipeline.RunOnce(ctx, pcfg)
		if err != nil {
			return fmt.Errorf("rescore cycle failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())
		return nil
	}

	if err := pipeline.Start(pcfg); err != nil {
		return err
	}
	log.Info("Rescore pipeline running; press Ctrl+C to stop")
	<-ctx.Done()

	log.Info("Shutdown signal received, stopping pipeline")
	if err := pipeline.Stop(); err != nil {
		return err
	}
	if last := pipeline.LastStats(); last != nil {
		fmt.Fprintln(cmd.OutOrStdout(), last.Summary())
	}
	return nil
}
