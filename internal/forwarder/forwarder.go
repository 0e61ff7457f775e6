// Package forwarder orchestrates one message's journey: rule resolution,
// retrieval, header rewrite, body filtering, and hand-off to the outbound
// transport.
package forwarder

import (
	"context"
	"log/slog"

	"github.com/shineum/mail-forwarder-lite/internal/event"
	"github.com/shineum/mail-forwarder-lite/internal/message"
	"github.com/shineum/mail-forwarder-lite/internal/notify"
	"github.com/shineum/mail-forwarder-lite/internal/rules"
	"github.com/shineum/mail-forwarder-lite/internal/storage"
	"github.com/shineum/mail-forwarder-lite/internal/transport"
)

// Disposition is the outward-facing result of processing one message.
type Disposition int

const (
	// Continue tells the surrounding mail system to keep normal
	// processing, typically letting the message bounce as
	// undeliverable.
	Continue Disposition = iota
	// Stop signals that this system has taken ownership of the
	// message's final disposition.
	Stop
)

func (d Disposition) String() string {
	if d == Stop {
		return "stop"
	}
	return "continue"
}

// Config holds the collaborators and settings for a Forwarder.
type Config struct {
	Rules    *rules.RuleSet
	Fetcher  storage.Fetcher
	Sender   transport.Sender
	Notifier *notify.Notifier
	// Prefix is prepended to the message id to form the storage key.
	Prefix string
}

// Forwarder processes inbound notifications one at a time. It holds no
// state between messages; the rule set is read-only after construction.
type Forwarder struct {
	rules    *rules.RuleSet
	fetcher  storage.Fetcher
	sender   transport.Sender
	notifier *notify.Notifier
	prefix   string
}

// New creates a Forwarder from its collaborators.
func New(cfg Config) *Forwarder {
	return &Forwarder{
		rules:    cfg.Rules,
		fetcher:  cfg.Fetcher,
		sender:   cfg.Sender,
		notifier: cfg.Notifier,
		prefix:   cfg.Prefix,
	}
}

// Process resolves, rewrites, and forwards one message. Once resolution
// yields a non-empty target set the disposition is Stop regardless of
// downstream failure (the operator is notified instead); the exceptions
// are an empty resolution and a body-filter veto, which return Continue
// without the transport ever being invoked.
func (f *Forwarder) Process(ctx context.Context, n *event.Notification) Disposition {
	res := f.rules.Resolve(n.Recipients, n.Subject)
	if len(res.Targets) == 0 {
		slog.Info("no forwarding targets, letting message bounce",
			"message_id", n.MessageID,
			"recipients", n.Recipients,
		)
		return Continue
	}

	key := f.prefix + n.MessageID

	raw, err := f.fetcher.Fetch(ctx, key)
	if err != nil {
		slog.Error("message retrieval failed", "key", key, "error", err)
		f.notifier.NotifyFailure(ctx, err, key, nil)
		return Stop
	}

	msg, err := message.Parse(raw)
	if err != nil {
		slog.Error("message parse failed", "key", key, "error", err)
		f.notifier.NotifyFailure(ctx, err, key, raw)
		return Stop
	}

	headers := message.Rewrite(msg, res.Primary)

	if message.FilterBody(msg.Body, f.rules.BodyReject()) {
		slog.Info("message vetoed by body filter, letting it bounce",
			"message_id", n.MessageID,
		)
		return Continue
	}

	out := message.Assemble(headers, msg.Body, msg.CRLF)

	if err := f.sender.Send(ctx, res.Targets, res.Primary, out); err != nil {
		slog.Error("forwarding failed",
			"key", key,
			"targets", res.Targets,
			"error", err,
		)
		f.notifier.NotifyFailure(ctx, err, key, raw)
		return Stop
	}

	slog.Info("message forwarded",
		"message_id", n.MessageID,
		"primary", res.Primary,
		"targets", res.Targets,
		"transport", f.sender.Name(),
	)
	return Stop
}
