// Package stdout implements a Sender that prints would-be deliveries to
// standard output. It is the dry-run transport: nothing leaves the host.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sender prints deliveries to stdout in a human-readable format.
type Sender struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Sender that writes to os.Stdout.
func New() *Sender {
	return &Sender{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Sender that writes to the given
// writer. This is useful for testing.
func NewWithWriter(w io.Writer) *Sender {
	return &Sender{writer: w}
}

// Send prints the delivery to stdout. It always returns nil (success).
func (s *Sender) Send(_ context.Context, targets []string, source string, raw []byte) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("Source: %s\n", source))
	b.WriteString(fmt.Sprintf("Targets: %s\n", strings.Join(targets, ", ")))
	b.WriteString(fmt.Sprintf("Message (%d bytes):\n", len(raw)))
	b.Write(raw)
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString("========================================\n")

	fmt.Fprint(s.writer, b.String())
	return nil
}

// Name returns the transport name.
func (s *Sender) Name() string {
	return "stdout"
}
