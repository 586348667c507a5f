package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/ahbrosha/tiny-bots/config"
	"github.com/ahbrosha/tiny-bots/internal/led"
	"github.com/spf13/cobra"
)

// watchCmd runs a watch described by a config file.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vendors of a config file",
	Long: `Watch the vendors, grids and presets of a tinybots configuration file.

The watch will:
  - Load configuration from the specified YAML file
  - Check every vendor in order until one has the item in stock
  - Notify the configured channels once and exit

The watch runs until the item is found, or until interrupted (Ctrl+C) or
SIGTERM is received.

Example:
  tinybots watch -c tinybots.yaml
  tinybots watch -c tinybots.yaml --interval 5m --min-jitter 0s --max-jitter 1m`,
	RunE: runWatchConfig,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	watchCmd.Flags().Duration("interval", 0, "override the base interval")
	watchCmd.Flags().Duration("min-jitter", 0, "override the minimum jitter")
	watchCmd.Flags().Duration("max-jitter", 0, "override the maximum jitter")
	watchCmd.Flags().Bool("leds", false, "toggle the Orange Pi 3 LEDs while checking")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatchConfig(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return withUsage(cmd, fmt.Errorf("failed to load config: %w", err))
	}

	applyOverrides(cmd, cfg)
	if err := cfg.ValidateTiming(); err != nil {
		return withUsage(cmd, err)
	}

	vendors, err := config.BuildVendors(cfg)
	if err != nil {
		return fmt.Errorf("failed to build vendors: %w", err)
	}
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return withUsage(cmd, err)
	}

	logger.Info("config loaded",
		"vendors", len(cfg.Vendors),
		"grids", len(cfg.Grids),
		"total", len(vendors),
	)

	return runWatch(cmd.Context(), logger, watchParams{
		vendors:    vendors,
		sourceOpts: config.BuildSourceOptions(cfg),
		watchOpts:  opts,
		leds:       cfg.LEDs,
	})
}

// applyOverrides copies explicitly set flags over the config values.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		d, _ := flags.GetDuration("interval")
		cfg.Interval = config.Duration(d)
	}
	if flags.Changed("min-jitter") {
		d, _ := flags.GetDuration("min-jitter")
		v := config.Duration(d)
		cfg.MinJitter = &v
	}
	if flags.Changed("max-jitter") {
		d, _ := flags.GetDuration("max-jitter")
		v := config.Duration(d)
		cfg.MaxJitter = &v
	}
	if flags.Changed("leds") {
		cfg.LEDs, _ = flags.GetBool("leds")
	}
}

// watchParams carries everything runWatch needs to assemble a watcher.
type watchParams struct {
	vendors    []tinybots.Vendor
	sourceOpts []tinybots.SourceOption
	watchOpts  []tinybots.Option
	leds       bool
}

// runWatch builds the HTTP source and watcher and blocks until the item is
// found or the process is signalled.
func runWatch(ctx context.Context, logger *slog.Logger, p watchParams) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sourceOpts := append([]tinybots.SourceOption{tinybots.WithSourceLogger(logger)}, p.sourceOpts...)
	src, err := tinybots.NewHTTPSource(p.vendors, sourceOpts...)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	defer src.Close()

	opts := append([]tinybots.Option{tinybots.WithLogger(logger)}, p.watchOpts...)
	if p.leds {
		opts = append(opts, ledOptions(led.OrangePi3(logger))...)
	}

	w, err := tinybots.New(src, opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := w.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown complete")
			return nil
		}
		return err
	}

	logger.Info("found",
		"label", result.Label,
		"mismatches", len(result.Mismatches),
		"elapsed", time.Since(start).Round(time.Second).String(),
	)
	return nil
}

// ledOptions lights the LEDs while a check runs and turns them off while
// sleeping and once the watch is done.
func ledOptions(obs *led.Observer) []tinybots.Option {
	return []tinybots.Option{
		tinybots.WithCycleCallback(func(e tinybots.CycleEvent) {
			if e.Phase == tinybots.PhaseChecking {
				obs.Checking()
				return
			}
			obs.Idle()
		}),
		tinybots.WithStateCallback(func(s tinybots.State) {
			if s == tinybots.StateDone {
				obs.Idle()
			}
		}),
	}
}
