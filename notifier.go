package tinybots

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

const (
	// DefaultMessage is the notification text template.
	DefaultMessage = "Hooray! Found {{.Label}}; time to waste money!"

	// DefaultSubject is the notification subject template.
	DefaultSubject = "{{.Label}} available!"
)

// Notification is the message delivered once the watched item is available.
// It is built from the terminal [CheckResult] and is never persisted.
type Notification struct {
	// Label is the vendor or variant that matched.
	Label string

	// Subject is a one-line summary, used as the email subject.
	Subject string

	// Text is the message body.
	Text string

	// Mismatches carries near-match diagnostics from the check.
	Mismatches []string

	// DetectedAt is when availability was detected.
	DetectedAt time.Time
}

// Notifier delivers a [Notification] through some channel (email, chat bot).
//
// Notify may perform network I/O. Errors are logged by the watcher and never
// stop it from reaching the done state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a plain function to [Notifier].
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// messageTemplates renders the subject and text of a notification.
type messageTemplates struct {
	subject *template.Template
	text    *template.Template
}

func parseMessageTemplates(subject, text string) (messageTemplates, error) {
	s, err := template.New("subject").Parse(subject)
	if err != nil {
		return messageTemplates{}, fmt.Errorf("invalid subject template: %w", err)
	}
	t, err := template.New("message").Parse(text)
	if err != nil {
		return messageTemplates{}, fmt.Errorf("invalid message template: %w", err)
	}
	return messageTemplates{subject: s, text: t}, nil
}

// build renders the notification for an available result. A template that
// fails to execute falls back to the label alone.
func (m messageTemplates) build(r CheckResult) Notification {
	n := Notification{
		Label:      r.Label,
		Mismatches: append([]string(nil), r.Mismatches...),
		DetectedAt: r.CheckedAt,
	}
	if n.DetectedAt.IsZero() {
		n.DetectedAt = time.Now()
	}

	n.Subject = render(m.subject, n, r.Label+" available!")
	n.Text = render(m.text, n, r.Label+" available")
	return n
}

func render(t *template.Template, n Notification, fallback string) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, n); err != nil {
		return fallback
	}
	return buf.String()
}
