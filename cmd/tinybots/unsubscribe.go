package main

import (
	"fmt"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/ahbrosha/tiny-bots/internal/poller"
	"github.com/ahbrosha/tiny-bots/internal/unsubscribe"
	"github.com/spf13/cobra"
)

// unsubscribeCmd drains the List-Unsubscribe links of a mailbox.
var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Visit the unsubscribe links of every message in a mailbox",
	Long: `Collect the List-Unsubscribe links of every message in an IMAP folder and
visit each http(s) link once. Messages are not marked as seen.

The links are cached in a JSON file. If the file already exists it is used
instead of the mailbox, so the IMAP settings may then be omitted. Delete or
edit the file to control what is visited.

Example:
  tinybots unsubscribe --server imap.example.com -u me@example.com -p secret
  tinybots unsubscribe --cache links.json --dry-run`,
	RunE: runUnsubscribe,
}

func init() {
	rootCmd.AddCommand(unsubscribeCmd)

	f := unsubscribeCmd.Flags()
	f.String("server", "", "IMAP server")
	f.Int("port", unsubscribe.DefaultIMAPPort, "IMAP port (TLS)")
	f.StringP("username", "u", "", "IMAP username")
	f.StringP("password", "p", "", "IMAP password")
	f.String("folder", "INBOX", "folder to read")
	f.String("cache", "unsubscribe_links.json", "link cache file")
	f.Bool("dry-run", false, "collect and list links without visiting them")
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	server, _ := f.GetString("server")
	port, _ := f.GetInt("port")
	username, _ := f.GetString("username")
	password, _ := f.GetString("password")
	folder, _ := f.GetString("folder")
	cache, _ := f.GetString("cache")
	dryRun, _ := f.GetBool("dry-run")

	enabled, err := tinybots.ValidateCredentials("imap",
		tinybots.Credential{Name: "server", Value: server},
		tinybots.Credential{Name: "username", Value: username},
		tinybots.Credential{Name: "password", Value: password},
	)
	if err != nil {
		return withUsage(cmd, err)
	}

	var mb unsubscribe.Mailbox
	if enabled {
		mb = unsubscribe.IMAPMailbox{
			Server:   server,
			Port:     port,
			Username: username,
			Password: password,
			Folder:   folder,
		}
	}

	links, cached, err := unsubscribe.LoadOrCollect(cmd.Context(), cache, mb)
	if err != nil {
		return err
	}
	logger.Info("links loaded", "count", len(links), "cached", cached, "cache", cache)

	if dryRun {
		out := cmd.OutOrStdout()
		for _, l := range links {
			fmt.Fprintln(out, l)
		}
		return nil
	}

	httpClient := poller.NewClient(poller.ClientOptions{})
	defer httpClient.Close()

	summary, err := unsubscribe.NewDrainer(httpClient, logger).Drain(cmd.Context(), links)
	fmt.Fprintf(cmd.OutOrStdout(), "visited %d, skipped %d, failed %d\n",
		summary.Visited, summary.Skipped, summary.Failed)
	return err
}
