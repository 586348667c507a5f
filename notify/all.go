// Package notify provides [tinybots.Notifier] implementations for email and
// Telegram, and [All] to send through several at once.
package notify

import (
	"context"
	"errors"
	"fmt"

	tinybots "github.com/ahbrosha/tiny-bots"
)

// All returns a notifier that delivers to every given notifier in order.
// Every channel is attempted even if an earlier one fails; the failures are
// joined into the returned error. Nil notifiers are skipped.
//
// Returns nil when no notifier is given, so the result can be passed straight
// to [tinybots.WithNotifier].
func All(notifiers ...tinybots.Notifier) tinybots.Notifier {
	var ns []tinybots.Notifier
	for _, n := range notifiers {
		if n != nil {
			ns = append(ns, n)
		}
	}
	switch len(ns) {
	case 0:
		return nil
	case 1:
		return ns[0]
	}

	return tinybots.NotifierFunc(func(ctx context.Context, n tinybots.Notification) error {
		var errs []error
		for i, nt := range ns {
			if err := nt.Notify(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("channel %d: %w", i+1, err))
			}
		}
		return errors.Join(errs...)
	})
}
