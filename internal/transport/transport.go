// Package transport defines the interface for outbound mail transports.
package transport

import "context"

// Sender is the interface that outbound transports must implement. It
// accepts a fully rewritten raw message; transports do not inspect or
// modify the bytes, and they make exactly one delivery attempt — failures
// are reported to the caller, never retried here.
type Sender interface {
	// Send delivers raw message bytes to the target addresses, with
	// source as the verified sender address.
	Send(ctx context.Context, targets []string, source string, raw []byte) error

	// Name returns the human-readable name of this transport.
	Name() string
}
