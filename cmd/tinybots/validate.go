package main

import (
	"fmt"

	"github.com/ahbrosha/tiny-bots/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting a watch.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a tinybots configuration file without starting a watch.

This command parses the YAML, expands environment variables, validates all
fields and lists the resulting vendors in priority order. No request is sent.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  tinybots validate -c tinybots.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	vendors, err := config.BuildVendors(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	notifier, err := config.BuildNotifier(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Interval: %s + %s..%s jitter\n",
		cfg.Interval.Duration(), cfg.MinJitter.Duration(), cfg.MaxJitter.Duration())
	fmt.Fprintf(out, "  Notify:   %t\n", notifier != nil)
	fmt.Fprintf(out, "  Vendors:  %d\n", len(vendors))

	t := newTable(cmd)
	t.AppendHeader(table.Row{"#", "Vendor", "Method", "Timeout", "URL"})
	for i, v := range vendors {
		t.AppendRow(table.Row{i + 1, v.Name(), v.Method(), v.Timeout(), v.URL()})
	}
	t.Render()

	return nil
}

// newTable creates a rounded table writing to the command's output.
func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(cmd.OutOrStdout())
	return t
}
