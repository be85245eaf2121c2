// Package notification delivers digests and alerts to out-of-band channels.
package notification

import (
	"context"
	"errors"
	"log/slog"
)

// Message kinds.
const (
	EventDigest        = "digest"
	EventSourceFailing = "source_failing"
)

// Message is one outbound notification.
type Message struct {
	Event   string
	Subject string
	Body    string
}

// Notifier sends a message or reports why it could not.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the log. It is the fallback when no
// channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Send implements Notifier.
func (n LogNotifier) Send(_ context.Context, msg Message) error {
	n.Logger.Info("notification", "event", msg.Event, "subject", msg.Subject, "body", msg.Body)
	return nil
}
