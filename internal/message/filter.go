package message

import (
	"github.com/shineum/mail-forwarder-lite/internal/rules"
)

// FilterBody scans body lines in order against the global body reject
// conditions and reports whether the message is vetoed. The first matching
// line decides; remaining lines and conditions are not evaluated. A veto
// suppresses forwarding but is not an error.
func FilterBody(body []string, conditions []rules.Matcher) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, line := range body {
		for _, m := range conditions {
			if m.Matches(line) {
				return true
			}
		}
	}
	return false
}
