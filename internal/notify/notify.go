// Package notify composes and sends operator diagnostics when forwarding
// fails.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shineum/mail-forwarder-lite/internal/transport"
)

// Notifier reports forwarding failures to a fixed operator address through
// an outbound transport. Notification failures are logged and swallowed so
// they never mask the failure being reported.
type Notifier struct {
	operator string
	source   string
	sender   transport.Sender
}

// New creates a Notifier. When operator is empty, notifications are
// silently skipped.
func New(operator, source string, sender transport.Sender) *Notifier {
	return &Notifier{
		operator: operator,
		source:   source,
		sender:   sender,
	}
}

// NotifyFailure sends a diagnostic message describing cause to the
// operator. location names the stored message; original carries as much of
// the raw message text as had been retrieved before the failure (may be
// nil).
func (n *Notifier) NotifyFailure(ctx context.Context, cause error, location string, original []byte) {
	if n.operator == "" {
		return
	}

	raw := composeReport(n.source, n.operator, cause, location, original)

	if err := n.sender.Send(ctx, []string{n.operator}, n.source, raw); err != nil {
		slog.Error("failed to notify operator of forwarding failure",
			"notify_error", err,
			"original_error", cause,
			"location", location,
		)
		return
	}

	slog.Info("operator notified of forwarding failure",
		"operator", n.operator,
		"location", location,
	)
}

// composeReport builds the diagnostic message as raw RFC 5322 bytes.
func composeReport(source, operator string, cause error, location string, original []byte) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", source)
	fmt.Fprintf(&b, "To: %s\r\n", operator)
	fmt.Fprintf(&b, "Subject: Mail forwarding failure: %s\r\n", location)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Forwarding failed with error: %v\r\n", cause)
	fmt.Fprintf(&b, "Stored message: %s\r\n", location)

	if len(original) > 0 {
		b.WriteString("\r\nOriginal message follows.\r\n\r\n")
		b.Write(original)
	}

	return []byte(b.String())
}
