package main

import (
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/ahbrosha/tiny-bots/notify"
	"github.com/ahbrosha/tiny-bots/presets"
	"github.com/spf13/cobra"
)

// cardCmd watches the NVIDIA shop for a founders edition card.
var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Watch the NVIDIA shop for a graphics card",
	Long: `Watch the NVIDIA partner search for a founders edition graphics card and
send an email once it can be bought.

Email is optional, but its settings must be given all together or not at
all. Without email the find is only logged.

Example:
  tinybots card -c "RTX 3080"
  tinybots card -c "RTX 3070" -i 10 \
    -f bot@example.com -t me@example.com -s smtp.example.com -u bot -p secret`,
	RunE: runCard,
}

func init() {
	rootCmd.AddCommand(cardCmd)

	f := cardCmd.Flags()
	f.StringP("card", "c", presets.DefaultCard, "card name as listed by NVIDIA")
	f.String("locale", presets.DefaultLocale, "shop locale")
	f.Bool("founders", true, "report partner cards as a mismatch")
	f.String("mismatch-policy", string(tinybots.MismatchAccept), "accept or reject near matches")
	addTimingFlags(cardCmd, 20)
	addEmailFlags(cardCmd)
	cardCmd.Flags().String("status-addr", "", "serve a status page on this address, e.g. :9100")
}

func runCard(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	card, _ := f.GetString("card")
	locale, _ := f.GetString("locale")
	founders, _ := f.GetBool("founders")
	policyFlag, _ := f.GetString("mismatch-policy")

	// configuration errors surface before any request is made
	emailCfg := emailConfigFromFlags(cmd)
	enabled, err := emailCfg.Validate()
	if err != nil {
		return withUsage(cmd, err)
	}
	policy, err := tinybots.ParseMismatchPolicy(policyFlag)
	if err != nil {
		return withUsage(cmd, &tinybots.ConfigError{Section: "mismatch-policy", Reason: err.Error()})
	}
	timing, err := timingOptions(cmd)
	if err != nil {
		return withUsage(cmd, err)
	}

	vendors, err := presets.NvidiaCards(presets.NvidiaOptions{
		Locale:          locale,
		RequireFounders: founders,
	}, card)
	if err != nil {
		return withUsage(cmd, &tinybots.ConfigError{Section: "card", Reason: err.Error()})
	}

	opts := append(timing,
		tinybots.WithName(card),
		tinybots.WithMismatchPolicy(policy),
		tinybots.WithMessage("Hooray! Found {{.Label}}; time to waste money!\n\n"+presets.NvidiaSearchURL),
		tinybots.WithSubject(card+" available!"),
	)
	if enabled {
		mailer, err := notify.NewEmail(emailCfg)
		if err != nil {
			return withUsage(cmd, err)
		}
		opts = append(opts, tinybots.WithNotifier(mailer))
	} else {
		logger.Warn("no email settings given, finds are only logged")
	}
	if addr, _ := f.GetString("status-addr"); addr != "" {
		opts = append(opts, tinybots.WithStatusAddr(addr))
	}

	return runWatch(cmd.Context(), logger, watchParams{vendors: vendors, watchOpts: opts})
}

// addTimingFlags registers the interval and jitter flags, all in minutes.
func addTimingFlags(cmd *cobra.Command, defaultInterval int) {
	cmd.Flags().IntP("interval", "i", defaultInterval, "minutes between checks")
	cmd.Flags().Int("min-delay", 3, "minimum random extra delay in minutes")
	cmd.Flags().Int("max-delay", 7, "maximum random extra delay in minutes")
}

func timingOptions(cmd *cobra.Command) ([]tinybots.Option, error) {
	interval, _ := cmd.Flags().GetInt("interval")
	minDelay, _ := cmd.Flags().GetInt("min-delay")
	maxDelay, _ := cmd.Flags().GetInt("max-delay")

	if interval <= 0 {
		return nil, &tinybots.ConfigError{Section: "interval", Reason: "must be at least 1 minute"}
	}
	if minDelay < 0 || minDelay > maxDelay {
		return nil, &tinybots.ConfigError{Section: "min-delay", Reason: "must be between 0 and max-delay"}
	}

	return []tinybots.Option{
		tinybots.WithInterval(time.Duration(interval) * time.Minute),
		tinybots.WithJitter(time.Duration(minDelay)*time.Minute, time.Duration(maxDelay)*time.Minute),
	}, nil
}

// addEmailFlags registers the SMTP flags.
func addEmailFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("from", "f", "", "sender address")
	f.StringSliceP("to", "t", nil, "recipient addresses")
	f.StringP("server", "s", "", "SMTP server")
	f.StringP("username", "u", "", "SMTP username")
	f.StringP("password", "p", "", "SMTP password")
	f.Int("port", notify.DefaultSMTPPort, "SMTP port")
	f.String("tls", string(notify.TLSImplicit), "tls or starttls")
}

func emailConfigFromFlags(cmd *cobra.Command) notify.EmailConfig {
	f := cmd.Flags()
	from, _ := f.GetString("from")
	to, _ := f.GetStringSlice("to")
	server, _ := f.GetString("server")
	username, _ := f.GetString("username")
	password, _ := f.GetString("password")
	port, _ := f.GetInt("port")
	tls, _ := f.GetString("tls")

	return notify.EmailConfig{
		From:     from,
		To:       to,
		Server:   server,
		Port:     port,
		Username: username,
		Password: password,
		TLS:      notify.TLSMode(tls),
	}
}
