// Package notify delivers report messages to users.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

type Message struct {
	// To is the recipient address. Channels with a fixed destination ignore it.
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Log writes messages to the log instead of delivering them. It is the
// fallback when no channel is configured.
type Log struct{}

func (Log) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "Report not delivered, no notifier configured",
		"to", msg.To, "subject", msg.Subject, "bytes", len(msg.Body))
	return nil
}

// Multi fans a message out to several notifiers. Every notifier is tried;
// the failures are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
