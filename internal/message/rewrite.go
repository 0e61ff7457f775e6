package message

import (
	"fmt"
	"log/slog"
	"strings"
)

// excludedHeaders are dropped outright: they are stale or unverifiable
// once the message is re-sent from a different origin, and the outbound
// transport rejects messages carrying them.
var excludedHeaders = map[string]bool{
	"return-path":    true,
	"sender":         true,
	"dkim-signature": true,
}

// fromSanitizer strips characters from the original From value that are
// only legal in the address portion. The former display text gets
// re-quoted below; leaving quotes or angle brackets in it would let a
// crafted display name inject header structure.
var fromSanitizer = strings.NewReplacer(`"`, "", "<", "(", ">", ")")

// Rewrite applies the per-header decision table and returns the new header
// block as wire lines. The From header is replaced so the outbound
// transport sees a sender domain it can authenticate (the primary
// recipient's); the original sender is preserved for replies via Reply-To
// when the message did not already carry one.
func Rewrite(msg *ParsedMessage, primary string) []string {
	var out []string
	seen := make(map[string]bool)
	var origFrom string
	replyToKept := false

	for _, h := range msg.Headers {
		name := strings.ToLower(h.Name)
		switch {
		case excludedHeaders[name]:
			continue
		case name == "reply-to" && strings.TrimSpace(h.Value) == "":
			continue
		case seen[name] && name != "received":
			// Duplicate suppression. Received is exempt: one per
			// hop is legitimate.
			continue
		case name == "from":
			origFrom = h.Value
			out = append(out, fmt.Sprintf(`From: "%s" <%s>`, fromSanitizer.Replace(origFrom), primary))
			seen[name] = true
		default:
			out = append(out, h.Raw...)
			seen[name] = true
			if name == "reply-to" {
				replyToKept = true
			}
		}
	}

	// Runs once, after the full scan: an interleaved injection could
	// race an original Reply-To appearing later in the block.
	if !replyToKept {
		if origFrom != "" {
			out = append(out, "Reply-To: "+origFrom)
		} else {
			slog.Warn("message has no From header, forwarding without Reply-To")
		}
	}

	return out
}
