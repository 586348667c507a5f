// Package main is the entry point for the tinybots CLI.
//
// tinybots can be used as a library (SDK) or as a standalone binary. This CLI
// provides the standalone binary approach.
//
// Usage:
//
//	tinybots watch -c tinybots.yaml          # Watch the vendors of a config file
//	tinybots card -c "RTX 3080" -f ... -p ... # Watch NVIDIA for a founders edition
//	tinybots cpu -t TOKEN -c CHAT_ID         # Watch the Ryzen 5 5600X shops
//	tinybots validate -c tinybots.yaml       # Validate configuration
//	tinybots prices BP01-DE003 -r "Super Rare"
//	tinybots unsubscribe --server imap.example.com -u me -p secret
//	tinybots version                         # Show version info
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "tinybots",
	Short: "Small bots that watch shops and tell you when something is in stock",
	Long: `tinybots polls shop pages until an item is available, then notifies you
once by email or Telegram and exits.

Quick start:
  1. Create a config file (tinybots.yaml)
  2. Run: tinybots watch -c tinybots.yaml

Example config:
  interval: 20m
  vendors:
    - name: NBB
      url: https://www.notebooksbilliger.de/amd+ryzen+5+5600x+cpu
      detector: "contains:sofort ab Lager"
  notify:
    telegram:
      token: ${TELEGRAM_TOKEN}
      chat_id: ${TELEGRAM_CHAT_ID}`,
	// usage is printed explicitly for configuration errors only
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this tinybots binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tinybots %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates the CLI logger on stderr from the persistent flags.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	format, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")
	return buildLogger(cmd.ErrOrStderr(), format, verbose)
}

func buildLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected text or json)", format)
	}
}

// withUsage prints the command usage for configuration errors, which are
// the user's to fix, and passes err through unchanged.
func withUsage(cmd *cobra.Command, err error) error {
	var cfgErr *tinybots.ConfigError
	if errors.As(err, &cfgErr) {
		_ = cmd.Usage()
	}
	return err
}
