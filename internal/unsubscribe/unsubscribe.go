// Package unsubscribe collects List-Unsubscribe links from a mailbox and
// visits them.
//
// Links are cached in a JSON file on first collection. Later runs read the
// cache instead of the mailbox, so a drain can be repeated or edited by hand.
package unsubscribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ahbrosha/tiny-bots/internal/poller"
)

var (
	headerRe = regexp.MustCompile(`(?im)^List-Unsubscribe:[ \t]*(.*)$`)
	linkRe   = regexp.MustCompile(`<(\S+?)>`)
)

const visitTimeout = 20 * time.Second

// Mailbox yields the raw header block of every message in a folder.
type Mailbox interface {
	Headers(ctx context.Context) ([][]byte, error)
}

// ExtractLinks returns the links of the List-Unsubscribe header in a raw
// header block, in header order. Folded header lines are unfolded first.
func ExtractLinks(header []byte) []string {
	h := strings.NewReplacer("\r\n ", " ", "\r\n\t", " ", "\n ", " ", "\n\t", " ").Replace(string(header))

	var links []string
	for _, m := range headerRe.FindAllStringSubmatch(h, -1) {
		for _, l := range linkRe.FindAllStringSubmatch(m[1], -1) {
			links = append(links, l[1])
		}
	}
	return links
}

// Collect reads every message header from mb and returns the unique
// unsubscribe links, sorted.
func Collect(ctx context.Context, mb Mailbox) ([]string, error) {
	headers, err := mb.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("read mailbox: %w", err)
	}

	seen := make(map[string]bool)
	links := []string{}
	for _, h := range headers {
		for _, l := range ExtractLinks(h) {
			if !seen[l] {
				seen[l] = true
				links = append(links, l)
			}
		}
	}
	sort.Strings(links)
	return links, nil
}

// LoadOrCollect returns the cached links at path. If the cache does not
// exist, it collects them from mb and writes the cache.
func LoadOrCollect(ctx context.Context, path string, mb Mailbox) (links []string, cached bool, err error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &links); err != nil {
			return nil, true, fmt.Errorf("read cache %s: %w", path, err)
		}
		return links, true, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("read cache %s: %w", path, err)
	}

	if mb == nil {
		return nil, false, fmt.Errorf("no cache at %s and no mailbox configured", path)
	}

	links, err = Collect(ctx, mb)
	if err != nil {
		return nil, false, err
	}
	if err := WriteCache(path, links); err != nil {
		return nil, false, err
	}
	return links, false, nil
}

// WriteCache stores links as an indented, sorted JSON array.
func WriteCache(path string, links []string) error {
	sorted := append([]string{}, links...)
	sort.Strings(sorted)

	data, err := json.MarshalIndent(sorted, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write cache %s: %w", path, err)
	}
	return nil
}

// Summary counts the outcome of a drain.
type Summary struct {
	Visited int
	Skipped int
	Failed  int
}

// Drainer visits unsubscribe links.
type Drainer struct {
	client *poller.Client
	logger *slog.Logger
}

// NewDrainer creates a [Drainer]. A nil logger means [slog.Default].
func NewDrainer(client *poller.Client, logger *slog.Logger) *Drainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drainer{client: client, logger: logger}
}

// Drain visits each http(s) link in order. Other schemes, such as mailto,
// are skipped. A failed visit is logged and counted; the drain carries on.
// Drain stops early only when ctx is cancelled.
func (d *Drainer) Drain(ctx context.Context, links []string) (Summary, error) {
	var s Summary
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			d.logger.Debug("skipping link", "link", link)
			s.Skipped++
			continue
		}

		resp := d.client.Fetch(ctx, http.MethodGet, link, nil, visitTimeout)
		switch {
		case resp.Error != nil:
			d.logger.Warn("visit failed", "link", link, "error", resp.Error)
			s.Failed++
		case resp.StatusCode >= 400:
			d.logger.Warn("visit failed", "link", link, "status_code", resp.StatusCode)
			s.Failed++
		default:
			d.logger.Info("visited", "link", link, "status_code", resp.StatusCode)
			s.Visited++
		}
	}
	return s, nil
}
