package main

import (
	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/ahbrosha/tiny-bots/notify"
	"github.com/ahbrosha/tiny-bots/presets"
	"github.com/spf13/cobra"
)

// cpuCmd watches three German shops for the Ryzen 5 5600X.
var cpuCmd = &cobra.Command{
	Use:   "cpu",
	Short: "Watch Alternate, Mindfactory and NBB for a Ryzen 5 5600X",
	Long: `Watch Alternate, Mindfactory (below 340 €) and NBB, in that order, for a
Ryzen 5 5600X and send a Telegram message once one has it in stock.

Both the bot token and the chat id are required.

Example:
  tinybots cpu -t 123456:ABC -c 4711
  tinybots cpu -t 123456:ABC -c 4711 -i 30 --use-opi3-leds`,
	RunE: runCPU,
}

func init() {
	rootCmd.AddCommand(cpuCmd)

	f := cpuCmd.Flags()
	f.StringP("token", "t", "", "Telegram bot token (required)")
	f.StringP("chat-id", "c", "", "Telegram chat id (required)")
	f.Bool("use-opi3-leds", false, "toggle the Orange Pi 3 LEDs while checking")
	f.String("status-addr", "", "serve a status page on this address, e.g. :9100")
	addTimingFlags(cpuCmd, 60)
}

func runCPU(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	token, _ := f.GetString("token")
	chatID, _ := f.GetString("chat-id")
	leds, _ := f.GetBool("use-opi3-leds")

	tgCfg := notify.TelegramConfig{Token: token, ChatID: chatID}
	enabled, err := tgCfg.Validate()
	if err != nil {
		return withUsage(cmd, err)
	}
	if !enabled {
		return withUsage(cmd, &tinybots.ConfigError{Section: "telegram", Missing: []string{"token", "chat_id"}})
	}
	timing, err := timingOptions(cmd)
	if err != nil {
		return withUsage(cmd, err)
	}

	bot, err := notify.NewTelegram(tgCfg)
	if err != nil {
		return withUsage(cmd, err)
	}

	opts := append(timing,
		tinybots.WithName("Ryzen 5 5600X"),
		tinybots.WithNotifier(bot),
		tinybots.WithMessage("Hooray! Found the Ryzen 5 5600X at {{.Label}}; time to waste money!"),
	)
	if addr, _ := f.GetString("status-addr"); addr != "" {
		opts = append(opts, tinybots.WithStatusAddr(addr))
	}

	return runWatch(cmd.Context(), logger, watchParams{
		vendors:   presets.Ryzen5600X(),
		watchOpts: opts,
		leds:      leds,
	})
}
