package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	tinybots "github.com/ahbrosha/tiny-bots"
	"github.com/jordan-wright/email"
)

// DefaultSMTPPort is the implicit TLS submission port.
const DefaultSMTPPort = 465

const defaultSendTimeout = 10 * time.Second

// TLSMode selects how the SMTP connection is secured.
type TLSMode string

const (
	// TLSImplicit dials TLS directly, usually on port 465.
	TLSImplicit TLSMode = "tls"

	// TLSStartTLS upgrades a plain connection, usually on port 587.
	TLSStartTLS TLSMode = "starttls"
)

// EmailConfig holds the SMTP settings of an [Email] notifier.
//
// From, To, Server, Username and Password are all required; see
// [EmailConfig.Validate].
type EmailConfig struct {
	From     string
	To       []string
	Server   string
	Port     int
	Username string
	Password string
	TLS      TLSMode
}

// Validate checks that the credential fields are given together and that
// the remaining settings are usable. It reports whether email is enabled.
func (c EmailConfig) Validate() (bool, error) {
	enabled, err := tinybots.ValidateCredentials("email",
		tinybots.Credential{Name: "from", Value: c.From},
		tinybots.Credential{Name: "to", Value: strings.Join(c.To, ",")},
		tinybots.Credential{Name: "server", Value: c.Server},
		tinybots.Credential{Name: "username", Value: c.Username},
		tinybots.Credential{Name: "password", Value: c.Password},
	)
	if err != nil || !enabled {
		return false, err
	}

	if c.Port < 0 || c.Port > 65535 {
		return false, &tinybots.ConfigError{Section: "email", Reason: fmt.Sprintf("port %d out of range", c.Port)}
	}
	switch c.TLS {
	case "", TLSImplicit, TLSStartTLS:
	default:
		return false, &tinybots.ConfigError{Section: "email", Reason: fmt.Sprintf("unknown tls mode %q", c.TLS)}
	}
	return true, nil
}

// sendFunc delivers a prepared message; swapped out in tests.
type sendFunc func(e *email.Email, addr string, auth smtp.Auth, cfg *tls.Config) error

// Email sends notifications over authenticated SMTP.
type Email struct {
	cfg     EmailConfig
	timeout time.Duration
	send    sendFunc
}

// NewEmail creates an [Email] notifier. A zero port means [DefaultSMTPPort]
// and an empty TLS mode means [TLSImplicit].
//
// Returns a [*tinybots.ConfigError] if the configuration is incomplete.
func NewEmail(cfg EmailConfig) (*Email, error) {
	enabled, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, &tinybots.ConfigError{Section: "email", Reason: "no settings given"}
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSImplicit
	}

	send := (*email.Email).SendWithTLS
	if cfg.TLS == TLSStartTLS {
		send = (*email.Email).SendWithStartTLS
	}

	return &Email{cfg: cfg, timeout: defaultSendTimeout, send: send}, nil
}

// Notify sends n as a plain text email. The SMTP exchange is bounded by a
// 10 second timeout or ctx, whichever ends first.
func (m *Email) Notify(ctx context.Context, n tinybots.Notification) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = m.cfg.To
	e.Subject = n.Subject
	e.Text = []byte(body(n))

	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Server)
	tlsCfg := &tls.Config{ServerName: m.cfg.Server, MinVersion: tls.VersionTLS12}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// the email package has no context support, so the send runs aside
	done := make(chan error, 1)
	go func() {
		done <- m.send(e, addr, auth, tlsCfg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email via %s: %w", addr, errors.Join(ctx.Err(), errSendAbandoned))
	}
}

var errSendAbandoned = errors.New("smtp exchange abandoned")

// body appends near-match diagnostics to the message text.
func body(n tinybots.Notification) string {
	if len(n.Mismatches) == 0 {
		return n.Text
	}
	var b strings.Builder
	b.WriteString(n.Text)
	b.WriteString("\n\nNote: the match is not exact:\n")
	for _, m := range n.Mismatches {
		b.WriteString("  - ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}
