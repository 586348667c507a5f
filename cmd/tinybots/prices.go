package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ahbrosha/tiny-bots/internal/poller"
	"github.com/ahbrosha/tiny-bots/internal/prices"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// pricesCmd looks up card prices.
var pricesCmd = &cobra.Command{
	Use:   "prices SERIAL...",
	Short: "Look up trading card prices",
	Long: `Look up the cheapest listing of each card serial at trader-online and print
the results as a table. Cards without a listing are shown as not found.

Example:
  tinybots prices BP01-DE003 LOB-DE001 -r "Super Rare"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrices,
}

func init() {
	rootCmd.AddCommand(pricesCmd)

	pricesCmd.Flags().StringP("rarity", "r", "Common",
		"rarity filter: "+strings.Join(prices.Rarities(), ", "))
	pricesCmd.Flags().String("url", prices.DefaultURL, "listing search URL")
	_ = pricesCmd.Flags().MarkHidden("url")
}

func runPrices(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	rarity, _ := cmd.Flags().GetString("rarity")
	baseURL, _ := cmd.Flags().GetString("url")

	httpClient := poller.NewClient(poller.ClientOptions{RequestsPerSecond: 1})
	defer httpClient.Close()
	client := prices.NewClient(httpClient, baseURL)

	t := newTable(cmd)
	t.AppendHeader(table.Row{"Serial", "Name", "Rarity", "Price"})

	var failed int
	for _, serial := range args {
		card, err := client.Lookup(cmd.Context(), serial, rarity)
		switch {
		case errors.Is(err, prices.ErrNotFound):
			t.AppendRow(table.Row{serial, "not found", rarity, ""})
		case err != nil:
			logger.Warn("lookup failed", "serial", serial, "error", err)
			t.AppendRow(table.Row{serial, "error", rarity, ""})
			failed++
		default:
			t.AppendRow(table.Row{card.Serial, card.Name, card.Rarity, fmt.Sprintf("%.2f €", card.Price)})
		}
	}
	t.Render()

	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(args))
	}
	return nil
}
