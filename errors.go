package tinybots

import (
	"fmt"
	"strings"
)

// ConfigError reports invalid configuration found before polling starts.
//
// A ConfigError is fatal: callers should exit with a non-zero status and a
// usage message instead of starting the poll loop.
type ConfigError struct {
	// Section names the configuration block, e.g. "email" or "telegram".
	Section string

	// Missing lists the fields that must be supplied alongside the ones given.
	Missing []string

	// Reason is a free-form explanation for errors not about missing fields.
	Reason string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: either specify all of its settings or none; missing %s",
			e.Section, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Section, e.Reason)
}

// NotificationError wraps a failed delivery. The poll loop logs it and still
// stops, because termination is driven by detection rather than delivery.
type NotificationError struct {
	Label string
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %q: %v", e.Label, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Credential is one named setting of a notification channel.
type Credential struct {
	Name  string
	Value string
}

// ValidateCredentials enforces that a channel's credentials are supplied
// completely or not at all.
//
// It reports whether the channel is enabled (every credential set) and
// returns a [*ConfigError] listing the missing names when only some are set.
// Whitespace-only values count as missing.
//
// Example:
//
//	enabled, err := tinybots.ValidateCredentials("telegram",
//	    tinybots.Credential{Name: "token", Value: token},
//	    tinybots.Credential{Name: "chat_id", Value: chatID},
//	)
func ValidateCredentials(section string, creds ...Credential) (bool, error) {
	var missing []string
	for _, c := range creds {
		if strings.TrimSpace(c.Value) == "" {
			missing = append(missing, c.Name)
		}
	}

	switch len(missing) {
	case 0:
		return len(creds) > 0, nil
	case len(creds):
		return false, nil
	default:
		return false, &ConfigError{Section: section, Missing: missing}
	}
}
