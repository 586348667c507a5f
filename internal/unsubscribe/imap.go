package unsubscribe

import (
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// DefaultIMAPPort is the implicit TLS IMAP port.
const DefaultIMAPPort = 993

// IMAPMailbox reads message headers from one folder over IMAP with TLS.
type IMAPMailbox struct {
	Server   string
	Port     int
	Username string
	Password string
	Folder   string
}

// Headers logs in, selects the folder read-only and fetches every header
// block without marking messages as seen.
func (m IMAPMailbox) Headers(ctx context.Context) ([][]byte, error) {
	port := m.Port
	if port == 0 {
		port = DefaultIMAPPort
	}
	folder := m.Folder
	if folder == "" {
		folder = "INBOX"
	}

	c, err := client.DialTLS(fmt.Sprintf("%s:%d", m.Server, port), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.Server, err)
	}
	defer func() { _ = c.Logout() }()

	// the client has no context support; tear the connection down instead
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-stop:
		}
	}()

	if err := c.Login(m.Username, m.Password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(1, mbox.Messages)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var headers [][]byte
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		b, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		headers = append(headers, b)
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch headers: %w", err)
	}
	return headers, nil
}
